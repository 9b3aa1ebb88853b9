package api

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Message is implemented by every booking.v1 message.
type Message interface {
	appendWire(b []byte) []byte
	readWire(b []byte) error
}

// results a field reader returns besides a byte count
const (
	skip      = math.MinInt
	badNested = math.MinInt + 1
)

// walk calls field for each field in b. field returns the bytes it consumed
// from v, a negative protowire code, badNested, or skip to step over a
// field it does not know.
func walk(b []byte, field func(num protowire.Number, typ protowire.Type, v []byte) int) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m := field(num, typ, b)
		switch {
		case m == skip:
			m = protowire.ConsumeFieldValue(num, typ, b)
		case m == badNested:
			return fmt.Errorf("api: field %d: malformed message", num)
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendMessage(b []byte, num protowire.Number, m Message) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.appendWire(nil))
}

// appendTime writes t as a google.protobuf.Timestamp.
func appendTime(b []byte, num protowire.Number, t time.Time) []byte {
	if t.IsZero() {
		return b
	}
	ts, err := proto.Marshal(timestamppb.New(t))
	if err != nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, ts)
}

func readString(v []byte, dst *string) int {
	s, n := protowire.ConsumeString(v)
	if n >= 0 {
		*dst = s
	}
	return n
}

func readInt64(v []byte, dst *int64) int {
	x, n := protowire.ConsumeVarint(v)
	if n >= 0 {
		*dst = int64(x)
	}
	return n
}

func readBool(v []byte, dst *bool) int {
	x, n := protowire.ConsumeVarint(v)
	if n >= 0 {
		*dst = protowire.DecodeBool(x)
	}
	return n
}

func readMessage(v []byte, m Message) int {
	data, n := protowire.ConsumeBytes(v)
	if n < 0 {
		return n
	}
	if err := m.readWire(data); err != nil {
		return badNested
	}
	return n
}

func readTime(v []byte, dst *time.Time) int {
	data, n := protowire.ConsumeBytes(v)
	if n < 0 {
		return n
	}
	ts := &timestamppb.Timestamp{}
	if err := proto.Unmarshal(data, ts); err != nil || ts.CheckValid() != nil {
		return badNested
	}
	*dst = ts.AsTime()
	return n
}

// ----- booking.v1 messages -----

func (m *TimeSlot) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Time)
	return appendBool(b, 2, m.IsBooked)
}

func (m *TimeSlot) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return readString(v, &m.Time)
		case num == 2 && typ == protowire.VarintType:
			return readBool(v, &m.IsBooked)
		}
		return skip
	})
}

func (m *AvailabilityView) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Date)
	for i := range m.Slots {
		b = appendMessage(b, 2, &m.Slots[i])
	}
	return b
}

func (m *AvailabilityView) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return readString(v, &m.Date)
		case num == 2 && typ == protowire.BytesType:
			var s TimeSlot
			n := readMessage(v, &s)
			if n >= 0 {
				m.Slots = append(m.Slots, s)
			}
			return n
		}
		return skip
	})
}

func (m *Appointment) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.CustomerID)
	b = appendString(b, 3, m.CustomerName)
	b = appendString(b, 4, m.CustomerEmail)
	b = appendString(b, 5, m.Date)
	b = appendString(b, 6, m.Time)
	b = appendString(b, 7, m.Note)
	b = appendTime(b, 8, m.CreatedAt)
	return appendString(b, 9, m.Phone)
}

func (m *Appointment) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		if typ != protowire.BytesType {
			return skip
		}
		switch num {
		case 1:
			return readString(v, &m.ID)
		case 2:
			return readString(v, &m.CustomerID)
		case 3:
			return readString(v, &m.CustomerName)
		case 4:
			return readString(v, &m.CustomerEmail)
		case 5:
			return readString(v, &m.Date)
		case 6:
			return readString(v, &m.Time)
		case 7:
			return readString(v, &m.Note)
		case 8:
			return readTime(v, &m.CreatedAt)
		case 9:
			return readString(v, &m.Phone)
		}
		return skip
	})
}

func (m *PaymentIntent) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.ID)
	b = appendInt64(b, 2, m.AmountMinorUnits)
	b = appendString(b, 3, m.Currency)
	b = appendString(b, 4, m.OrderName)
	b = appendString(b, 5, m.State)
	return appendString(b, 6, m.ClientSecret)
}

func (m *PaymentIntent) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		switch {
		case num == 2 && typ == protowire.VarintType:
			return readInt64(v, &m.AmountMinorUnits)
		case typ != protowire.BytesType:
			return skip
		case num == 1:
			return readString(v, &m.ID)
		case num == 3:
			return readString(v, &m.Currency)
		case num == 4:
			return readString(v, &m.OrderName)
		case num == 5:
			return readString(v, &m.State)
		case num == 6:
			return readString(v, &m.ClientSecret)
		}
		return skip
	})
}

func (m *Order) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.IntentID)
	b = appendString(b, 3, m.OrderName)
	b = appendInt64(b, 4, m.AmountMinorUnits)
	b = appendString(b, 5, m.Currency)
	b = appendString(b, 6, m.PaymentOption)
	return appendTime(b, 7, m.CreatedAt)
}

func (m *Order) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		switch {
		case num == 4 && typ == protowire.VarintType:
			return readInt64(v, &m.AmountMinorUnits)
		case typ != protowire.BytesType:
			return skip
		case num == 1:
			return readString(v, &m.ID)
		case num == 2:
			return readString(v, &m.IntentID)
		case num == 3:
			return readString(v, &m.OrderName)
		case num == 5:
			return readString(v, &m.Currency)
		case num == 6:
			return readString(v, &m.PaymentOption)
		case num == 7:
			return readTime(v, &m.CreatedAt)
		}
		return skip
	})
}

func (m *GetAvailabilityRequest) appendWire(b []byte) []byte {
	return appendString(b, 1, m.Date)
}

func (m *GetAvailabilityRequest) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		if num == 1 && typ == protowire.BytesType {
			return readString(v, &m.Date)
		}
		return skip
	})
}

func (m *GetAvailabilityResponse) appendWire(b []byte) []byte {
	if m.View != nil {
		b = appendMessage(b, 1, m.View)
	}
	return b
}

func (m *GetAvailabilityResponse) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		if num == 1 && typ == protowire.BytesType {
			m.View = new(AvailabilityView)
			return readMessage(v, m.View)
		}
		return skip
	})
}

func (m *BookSlotRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Date)
	b = appendString(b, 2, m.Time)
	b = appendString(b, 3, m.Note)
	return appendString(b, 4, m.Phone)
}

func (m *BookSlotRequest) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		if typ != protowire.BytesType {
			return skip
		}
		switch num {
		case 1:
			return readString(v, &m.Date)
		case 2:
			return readString(v, &m.Time)
		case 3:
			return readString(v, &m.Note)
		case 4:
			return readString(v, &m.Phone)
		}
		return skip
	})
}

func (m *BookSlotResponse) appendWire(b []byte) []byte {
	if m.Appointment != nil {
		b = appendMessage(b, 1, m.Appointment)
	}
	return b
}

func (m *BookSlotResponse) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		if num == 1 && typ == protowire.BytesType {
			m.Appointment = new(Appointment)
			return readMessage(v, m.Appointment)
		}
		return skip
	})
}

func (m *CancelAppointmentRequest) appendWire(b []byte) []byte {
	return appendString(b, 1, m.ID)
}

func (m *CancelAppointmentRequest) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		if num == 1 && typ == protowire.BytesType {
			return readString(v, &m.ID)
		}
		return skip
	})
}

func (m *CancelAppointmentResponse) appendWire(b []byte) []byte { return b }

func (m *CancelAppointmentResponse) readWire(b []byte) error {
	return walk(b, func(protowire.Number, protowire.Type, []byte) int { return skip })
}

func (m *ListAppointmentsRequest) appendWire(b []byte) []byte { return b }

func (m *ListAppointmentsRequest) readWire(b []byte) error {
	return walk(b, func(protowire.Number, protowire.Type, []byte) int { return skip })
}

func (m *ListAppointmentsResponse) appendWire(b []byte) []byte {
	for _, a := range m.Appointments {
		if a != nil {
			b = appendMessage(b, 1, a)
		}
	}
	return b
}

func (m *ListAppointmentsResponse) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		if num == 1 && typ == protowire.BytesType {
			a := new(Appointment)
			n := readMessage(v, a)
			if n >= 0 {
				m.Appointments = append(m.Appointments, a)
			}
			return n
		}
		return skip
	})
}

func (m *WatchAvailabilityRequest) appendWire(b []byte) []byte {
	for _, d := range m.Dates {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, d)
	}
	return b
}

func (m *WatchAvailabilityRequest) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		if num == 1 && typ == protowire.BytesType {
			var d string
			n := readString(v, &d)
			if n >= 0 {
				m.Dates = append(m.Dates, d)
			}
			return n
		}
		return skip
	})
}

func (m *CreatePaymentIntentRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.OrderName)
	return appendInt64(b, 2, m.AmountMinorUnits)
}

func (m *CreatePaymentIntentRequest) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return readString(v, &m.OrderName)
		case num == 2 && typ == protowire.VarintType:
			return readInt64(v, &m.AmountMinorUnits)
		}
		return skip
	})
}

func (m *CreatePaymentIntentResponse) appendWire(b []byte) []byte {
	if m.Intent != nil {
		b = appendMessage(b, 1, m.Intent)
	}
	return b
}

func (m *CreatePaymentIntentResponse) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		if num == 1 && typ == protowire.BytesType {
			m.Intent = new(PaymentIntent)
			return readMessage(v, m.Intent)
		}
		return skip
	})
}

func (m *PlaceCashOrderRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.OrderName)
	return appendInt64(b, 2, m.AmountMinorUnits)
}

func (m *PlaceCashOrderRequest) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return readString(v, &m.OrderName)
		case num == 2 && typ == protowire.VarintType:
			return readInt64(v, &m.AmountMinorUnits)
		}
		return skip
	})
}

func (m *PlaceCashOrderResponse) appendWire(b []byte) []byte {
	if m.Order != nil {
		b = appendMessage(b, 1, m.Order)
	}
	return b
}

func (m *PlaceCashOrderResponse) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		if num == 1 && typ == protowire.BytesType {
			m.Order = new(Order)
			return readMessage(v, m.Order)
		}
		return skip
	})
}

func (m *ListOrdersRequest) appendWire(b []byte) []byte { return b }

func (m *ListOrdersRequest) readWire(b []byte) error {
	return walk(b, func(protowire.Number, protowire.Type, []byte) int { return skip })
}

func (m *ListOrdersResponse) appendWire(b []byte) []byte {
	for _, o := range m.Orders {
		if o != nil {
			b = appendMessage(b, 1, o)
		}
	}
	return b
}

func (m *ListOrdersResponse) readWire(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v []byte) int {
		if num == 1 && typ == protowire.BytesType {
			o := new(Order)
			n := readMessage(v, o)
			if n >= 0 {
				m.Orders = append(m.Orders, o)
			}
			return n
		}
		return skip
	})
}
