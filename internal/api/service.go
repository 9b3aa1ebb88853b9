package api

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "booking.v1.BookingService"

// Full method names, as seen by interceptors.
const (
	MethodGetAvailability     = "/" + ServiceName + "/GetAvailability"
	MethodBookSlot            = "/" + ServiceName + "/BookSlot"
	MethodCancelAppointment   = "/" + ServiceName + "/CancelAppointment"
	MethodListAppointments    = "/" + ServiceName + "/ListAppointments"
	MethodWatchAvailability   = "/" + ServiceName + "/WatchAvailability"
	MethodCreatePaymentIntent = "/" + ServiceName + "/CreatePaymentIntent"
	MethodPlaceCashOrder      = "/" + ServiceName + "/PlaceCashOrder"
	MethodListOrders          = "/" + ServiceName + "/ListOrders"
)

type BookingServiceServer interface {
	GetAvailability(context.Context, *GetAvailabilityRequest) (*GetAvailabilityResponse, error)
	BookSlot(context.Context, *BookSlotRequest) (*BookSlotResponse, error)
	CancelAppointment(context.Context, *CancelAppointmentRequest) (*CancelAppointmentResponse, error)
	ListAppointments(context.Context, *ListAppointmentsRequest) (*ListAppointmentsResponse, error)
	WatchAvailability(*WatchAvailabilityRequest, WatchAvailabilityServer) error
	CreatePaymentIntent(context.Context, *CreatePaymentIntentRequest) (*CreatePaymentIntentResponse, error)
	PlaceCashOrder(context.Context, *PlaceCashOrderRequest) (*PlaceCashOrderResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
}

// WatchAvailabilityServer is the server side of the availability stream.
type WatchAvailabilityServer interface {
	Send(*AvailabilityView) error
	grpc.ServerStream
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAvailability", Handler: unary(MethodGetAvailability, BookingServiceServer.GetAvailability)},
		{MethodName: "BookSlot", Handler: unary(MethodBookSlot, BookingServiceServer.BookSlot)},
		{MethodName: "CancelAppointment", Handler: unary(MethodCancelAppointment, BookingServiceServer.CancelAppointment)},
		{MethodName: "ListAppointments", Handler: unary(MethodListAppointments, BookingServiceServer.ListAppointments)},
		{MethodName: "CreatePaymentIntent", Handler: unary(MethodCreatePaymentIntent, BookingServiceServer.CreatePaymentIntent)},
		{MethodName: "PlaceCashOrder", Handler: unary(MethodPlaceCashOrder, BookingServiceServer.PlaceCashOrder)},
		{MethodName: "ListOrders", Handler: unary(MethodListOrders, BookingServiceServer.ListOrders)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchAvailability",
			Handler:       watchAvailabilityHandler,
			ServerStreams: true,
		},
	},
	Metadata: "booking/v1/booking.proto",
}

// methodHandler matches grpc.MethodDesc.Handler, whose named type is unexported.
type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

// unary adapts a typed service method to a grpc.MethodDesc handler.
func unary[Req, Resp any](fullMethod string, call func(BookingServiceServer, context.Context, *Req) (*Resp, error)) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchAvailabilityHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchAvailabilityRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(BookingServiceServer).WatchAvailability(in, &watchAvailabilityServer{stream})
}

type watchAvailabilityServer struct {
	grpc.ServerStream
}

func (x *watchAvailabilityServer) Send(v *AvailabilityView) error {
	return x.ServerStream.SendMsg(v)
}
