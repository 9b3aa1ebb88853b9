package api

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls BookingService over cc, forcing the booking.v1 codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *Client) GetAvailability(ctx context.Context, in *GetAvailabilityRequest, opts ...grpc.CallOption) (*GetAvailabilityResponse, error) {
	out := new(GetAvailabilityResponse)
	if err := c.invoke(ctx, MethodGetAvailability, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) BookSlot(ctx context.Context, in *BookSlotRequest, opts ...grpc.CallOption) (*BookSlotResponse, error) {
	out := new(BookSlotResponse)
	if err := c.invoke(ctx, MethodBookSlot, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CancelAppointment(ctx context.Context, in *CancelAppointmentRequest, opts ...grpc.CallOption) (*CancelAppointmentResponse, error) {
	out := new(CancelAppointmentResponse)
	if err := c.invoke(ctx, MethodCancelAppointment, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListAppointments(ctx context.Context, in *ListAppointmentsRequest, opts ...grpc.CallOption) (*ListAppointmentsResponse, error) {
	out := new(ListAppointmentsResponse)
	if err := c.invoke(ctx, MethodListAppointments, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, in *CreatePaymentIntentRequest, opts ...grpc.CallOption) (*CreatePaymentIntentResponse, error) {
	out := new(CreatePaymentIntentResponse)
	if err := c.invoke(ctx, MethodCreatePaymentIntent, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PlaceCashOrder(ctx context.Context, in *PlaceCashOrderRequest, opts ...grpc.CallOption) (*PlaceCashOrderResponse, error) {
	out := new(PlaceCashOrderResponse)
	if err := c.invoke(ctx, MethodPlaceCashOrder, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	if err := c.invoke(ctx, MethodListOrders, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// WatchAvailabilityClient receives views until the stream ends.
type WatchAvailabilityClient interface {
	Recv() (*AvailabilityView, error)
	grpc.ClientStream
}

func (c *Client) WatchAvailability(ctx context.Context, in *WatchAvailabilityRequest, opts ...grpc.CallOption) (WatchAvailabilityClient, error) {
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], MethodWatchAvailability, opts...)
	if err != nil {
		return nil, err
	}
	x := &watchAvailabilityClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type watchAvailabilityClient struct {
	grpc.ClientStream
}

func (x *watchAvailabilityClient) Recv() (*AvailabilityView, error) {
	m := new(AvailabilityView)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
