package handler_test

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"automedic-booking/internal/api"
	"automedic-booking/internal/auth"
	"automedic-booking/internal/events"
	"automedic-booking/internal/feed"
	"automedic-booking/internal/handler"
	"automedic-booking/internal/middleware"
	"automedic-booking/internal/model"
	"automedic-booking/internal/orders"
	"automedic-booking/internal/payment"
	"automedic-booking/internal/scheduler"
	"automedic-booking/internal/store"
)

const (
	secret   = "test-jwt-secret"
	whsec    = "whsec_test_secret"
	someDate = "2099-06-15"
)

var (
	alice = model.Identity{UserID: "u-alice", Email: "alice@example.com", Name: "Alice"}
	bob   = model.Identity{UserID: "u-bob", Email: "bob@example.com", Name: "Bob"}
)

type fakeProvider struct {
	mu sync.Mutex
	n  int
}

func (p *fakeProvider) CreateIntent(_ context.Context, _ payment.ProviderRequest) (*payment.ProviderIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	id := fmt.Sprintf("pi_%d", p.n)
	return &payment.ProviderIntent{ID: id, ClientSecret: id + "_secret"}, nil
}

type env struct {
	client *api.Client
	store  *store.Memory
	coord  *payment.Coordinator
}

func setup(t *testing.T) *env {
	return setupWith(t, middleware.NewRateLimiter(1000, 1000))
}

func setupWith(t *testing.T, rl *middleware.RateLimiter) *env {
	t.Helper()
	log := zap.NewNop()
	st := store.NewMemory()
	pub := events.LogPublisher{Log: log}

	sched := scheduler.New(st, pub, log, scheduler.Options{})
	fd := feed.New(sched, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go fd.Run(ctx, st)
	require.Eventually(t, func() bool { return st.Listeners() == 1 }, time.Second, 5*time.Millisecond)

	recon := orders.New(st, log, time.Second)
	stripe := payment.NewStripe("sk_test", whsec)
	coord := payment.New(&fakeProvider{}, stripe, st, st, recon, pub, log, payment.Options{})

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(
		grpc.ForceServerCodec(api.Codec{}),
		grpc.ChainUnaryInterceptor(middleware.RateLimit(rl), middleware.Auth(secret)),
		grpc.ChainStreamInterceptor(middleware.AuthStream(secret)),
	)
	api.RegisterBookingServiceServer(srv, handler.New(sched, fd, coord, recon))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &env{client: api.NewClient(conn), store: st, coord: coord}
}

func as(t *testing.T, who model.Identity) context.Context {
	t.Helper()
	tok, err := auth.MakeToken(who, secret)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok)
}

func requireStatus(t *testing.T, err error, code codes.Code, reason string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, status.Code(err), err.Error())
	if reason != "" {
		assert.Equal(t, reason, handler.Reason(err))
	}
}

func booked(v *api.AvailabilityView) []string {
	var out []string
	for _, s := range v.Slots {
		if s.IsBooked {
			out = append(out, s.Time)
		}
	}
	return out
}

// ----- availability -----

func TestGetAvailabilityAnonymous(t *testing.T) {
	e := setup(t)

	resp, err := e.client.GetAvailability(context.Background(), &api.GetAvailabilityRequest{Date: someDate})
	require.NoError(t, err)
	require.Len(t, resp.View.Slots, 24)
	assert.Equal(t, someDate, resp.View.Date)
	assert.Equal(t, "10:00 AM", resp.View.Slots[0].Time)
	assert.Equal(t, "09:30 PM", resp.View.Slots[23].Time)
	assert.Empty(t, booked(resp.View))
}

func TestGetAvailabilityInvalidDate(t *testing.T) {
	e := setup(t)

	_, err := e.client.GetAvailability(context.Background(), &api.GetAvailabilityRequest{Date: "15/06/2099"})
	requireStatus(t, err, codes.InvalidArgument, "INVALID_DATE")
}

// ----- booking -----

func TestBookSlotRequiresToken(t *testing.T) {
	e := setup(t)
	req := &api.BookSlotRequest{Date: someDate, Time: "02:00 PM"}

	_, err := e.client.BookSlot(context.Background(), req)
	requireStatus(t, err, codes.Unauthenticated, "")

	bad := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer not.a.jwt")
	_, err = e.client.BookSlot(bad, req)
	requireStatus(t, err, codes.Unauthenticated, "")

	// a bad token is rejected even on open methods
	_, err = e.client.GetAvailability(bad, &api.GetAvailabilityRequest{Date: someDate})
	requireStatus(t, err, codes.Unauthenticated, "")
}

func TestBookSlotValidation(t *testing.T) {
	e := setup(t)
	ctx := as(t, alice)

	tests := []struct {
		name   string
		req    *api.BookSlotRequest
		reason string
	}{
		{"bad date", &api.BookSlotRequest{Date: "tomorrow", Time: "02:00 PM"}, "INVALID_DATE"},
		{"past date", &api.BookSlotRequest{Date: "2001-01-01", Time: "02:00 PM"}, "DATE_IN_PAST"},
		{"not a slot", &api.BookSlotRequest{Date: someDate, Time: "02:15 PM"}, "INVALID_TIME"},
		{"before opening", &api.BookSlotRequest{Date: someDate, Time: "09:30 AM"}, "INVALID_TIME"},
		{"empty time", &api.BookSlotRequest{Date: someDate}, "INVALID_TIME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.client.BookSlot(ctx, tt.req)
			requireStatus(t, err, codes.InvalidArgument, tt.reason)
		})
	}
}

func TestBookThenCancel(t *testing.T) {
	e := setup(t)

	br, err := e.client.BookSlot(as(t, alice), &api.BookSlotRequest{Date: someDate, Time: "02:00 PM", Note: "brakes squeak"})
	require.NoError(t, err)
	apt := br.Appointment
	assert.NotEmpty(t, apt.ID)
	assert.Equal(t, alice.UserID, apt.CustomerID)
	assert.Equal(t, "brakes squeak", apt.Note)

	av, err := e.client.GetAvailability(context.Background(), &api.GetAvailabilityRequest{Date: someDate})
	require.NoError(t, err)
	assert.Equal(t, []string{"02:00 PM"}, booked(av.View))

	_, err = e.client.BookSlot(as(t, bob), &api.BookSlotRequest{Date: someDate, Time: "02:00 PM"})
	requireStatus(t, err, codes.AlreadyExists, "SLOT_ALREADY_BOOKED")

	lr, err := e.client.ListAppointments(as(t, alice), &api.ListAppointmentsRequest{})
	require.NoError(t, err)
	require.Len(t, lr.Appointments, 1)
	assert.Equal(t, apt.ID, lr.Appointments[0].ID)

	// bob cannot see or cancel alice's appointment
	lr, err = e.client.ListAppointments(as(t, bob), &api.ListAppointmentsRequest{})
	require.NoError(t, err)
	assert.Empty(t, lr.Appointments)
	_, err = e.client.CancelAppointment(as(t, bob), &api.CancelAppointmentRequest{ID: apt.ID})
	requireStatus(t, err, codes.PermissionDenied, "NOT_AUTHORIZED")

	_, err = e.client.CancelAppointment(as(t, alice), &api.CancelAppointmentRequest{ID: apt.ID})
	require.NoError(t, err)

	av, err = e.client.GetAvailability(context.Background(), &api.GetAvailabilityRequest{Date: someDate})
	require.NoError(t, err)
	assert.Empty(t, booked(av.View))

	_, err = e.client.CancelAppointment(as(t, alice), &api.CancelAppointmentRequest{ID: apt.ID})
	requireStatus(t, err, codes.NotFound, "NOT_FOUND")
}

func TestConcurrentBooking(t *testing.T) {
	e := setup(t)

	const n = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		conflict int
	)
	ctxs := make([]context.Context, n)
	for i := range ctxs {
		ctxs[i] = as(t, model.Identity{UserID: fmt.Sprintf("u-%d", i)})
	}

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.client.BookSlot(ctxs[i], &api.BookSlotRequest{Date: someDate, Time: "11:30 AM"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case status.Code(err) == codes.AlreadyExists && handler.Reason(err) == "SLOT_ALREADY_BOOKED":
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflict)

	times, err := e.store.BookedTimes(context.Background(), someDate)
	require.NoError(t, err)
	assert.Equal(t, []string{"11:30 AM"}, times)
}

func TestRateLimitBookSlot(t *testing.T) {
	e := setupWith(t, middleware.NewRateLimiter(0.001, 1))
	ctx := as(t, alice)

	_, err := e.client.BookSlot(ctx, &api.BookSlotRequest{Date: someDate, Time: "10:00 AM"})
	require.NoError(t, err)

	_, err = e.client.BookSlot(ctx, &api.BookSlotRequest{Date: someDate, Time: "10:30 AM"})
	requireStatus(t, err, codes.ResourceExhausted, "")

	// reads are not limited
	_, err = e.client.GetAvailability(ctx, &api.GetAvailabilityRequest{Date: someDate})
	require.NoError(t, err)
}

// ----- change feed -----

func TestWatchAvailability(t *testing.T) {
	e := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := e.client.WatchAvailability(ctx, &api.WatchAvailabilityRequest{Dates: []string{someDate}})
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, someDate, first.Date)
	assert.Empty(t, booked(first))

	_, err = e.client.BookSlot(as(t, alice), &api.BookSlotRequest{Date: someDate, Time: "04:00 PM"})
	require.NoError(t, err)

	for {
		v, err := stream.Recv()
		require.NoError(t, err)
		if len(booked(v)) > 0 {
			assert.Equal(t, []string{"04:00 PM"}, booked(v))
			break
		}
	}
}

func TestWatchAvailabilityNoDates(t *testing.T) {
	e := setup(t)

	stream, err := e.client.WatchAvailability(context.Background(), &api.WatchAvailabilityRequest{})
	require.NoError(t, err)
	_, err = stream.Recv()
	requireStatus(t, err, codes.InvalidArgument, "NO_DATES")
}

// ----- payments -----

func TestCreatePaymentIntent(t *testing.T) {
	e := setup(t)

	_, err := e.client.CreatePaymentIntent(context.Background(), &api.CreatePaymentIntentRequest{OrderName: "Oil change", AmountMinorUnits: 2500})
	requireStatus(t, err, codes.Unauthenticated, "")

	for _, amount := range []int64{0, -100} {
		_, err := e.client.CreatePaymentIntent(as(t, alice), &api.CreatePaymentIntentRequest{OrderName: "Oil change", AmountMinorUnits: amount})
		requireStatus(t, err, codes.InvalidArgument, "INVALID_AMOUNT")
	}

	resp, err := e.client.CreatePaymentIntent(as(t, alice), &api.CreatePaymentIntentRequest{OrderName: "Oil change", AmountMinorUnits: 2500})
	require.NoError(t, err)
	assert.Equal(t, "created", resp.Intent.State)
	assert.Equal(t, int64(2500), resp.Intent.AmountMinorUnits)
	assert.NotEmpty(t, resp.Intent.ClientSecret)
}

func TestOrdersAfterSucceededWebhook(t *testing.T) {
	e := setup(t)

	resp, err := e.client.CreatePaymentIntent(as(t, alice), &api.CreatePaymentIntentRequest{OrderName: "Tyre rotation", AmountMinorUnits: 4000})
	require.NoError(t, err)

	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":%q,"object":"payment_intent"}}}`,
			resp.Intent.ID)),
		Secret:    whsec,
		Timestamp: time.Now(),
	})
	require.NoError(t, e.coord.HandleWebhookEvent(context.Background(), sp.Payload, sp.Header))

	or, err := e.client.ListOrders(as(t, alice), &api.ListOrdersRequest{})
	require.NoError(t, err)
	require.Len(t, or.Orders, 1)
	assert.Equal(t, resp.Intent.ID, or.Orders[0].IntentID)
	assert.Equal(t, "Tyre rotation", or.Orders[0].OrderName)
	assert.Equal(t, "stripe", or.Orders[0].PaymentOption)

	or, err = e.client.ListOrders(as(t, bob), &api.ListOrdersRequest{})
	require.NoError(t, err)
	assert.Empty(t, or.Orders)
}

func TestPlaceCashOrder(t *testing.T) {
	e := setup(t)

	_, err := e.client.PlaceCashOrder(context.Background(), &api.PlaceCashOrderRequest{OrderName: "Brake pads", AmountMinorUnits: 9000})
	requireStatus(t, err, codes.Unauthenticated, "")
	_, err = e.client.PlaceCashOrder(as(t, alice), &api.PlaceCashOrderRequest{OrderName: "Brake pads"})
	requireStatus(t, err, codes.InvalidArgument, "INVALID_AMOUNT")
	_, err = e.client.PlaceCashOrder(as(t, alice), &api.PlaceCashOrderRequest{OrderName: "  ", AmountMinorUnits: 9000})
	requireStatus(t, err, codes.InvalidArgument, "INVALID_METADATA")

	resp, err := e.client.PlaceCashOrder(as(t, alice), &api.PlaceCashOrderRequest{OrderName: "Brake pads", AmountMinorUnits: 9000})
	require.NoError(t, err)
	assert.Equal(t, "cash", resp.Order.PaymentOption)
	assert.Empty(t, resp.Order.IntentID)
	assert.False(t, resp.Order.CreatedAt.IsZero())

	_, err = e.client.PlaceCashOrder(as(t, alice), &api.PlaceCashOrderRequest{OrderName: "Wipers", AmountMinorUnits: 1500})
	require.NoError(t, err)

	or, err := e.client.ListOrders(as(t, alice), &api.ListOrdersRequest{})
	require.NoError(t, err)
	require.Len(t, or.Orders, 2)
	for _, o := range or.Orders {
		assert.Equal(t, "cash", o.PaymentOption)
		assert.Equal(t, "usd", o.Currency)
	}

	or, err = e.client.ListOrders(as(t, bob), &api.ListOrdersRequest{})
	require.NoError(t, err)
	assert.Empty(t, or.Orders)
}

func TestBookSlotCarriesPhone(t *testing.T) {
	e := setup(t)

	br, err := e.client.BookSlot(as(t, alice), &api.BookSlotRequest{Date: someDate, Time: "03:00 PM", Phone: "+1 555 010 9999"})
	require.NoError(t, err)
	assert.Equal(t, "+1 555 010 9999", br.Appointment.Phone)

	_, err = e.client.BookSlot(as(t, alice), &api.BookSlotRequest{Date: someDate, Time: "03:30 PM", Phone: "call me"})
	requireStatus(t, err, codes.InvalidArgument, "INVALID_PHONE")
}
