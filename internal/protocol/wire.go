package protocol

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed marks a frame whose payload could not be decoded. The stream
// itself stays aligned, so the reader may continue with the next frame.
var ErrMalformed = errors.New("malformed message")

// ErrUnsupported is returned when asked to encode a type that is not part of
// the protocol.
var ErrUnsupported = errors.New("unsupported message type")

// Command envelope fields.
const (
	fieldAddPlot    protowire.Number = 1
	fieldUpdateData protowire.Number = 2
	fieldSetAxis    protowire.Number = 3
)

// AddPlot fields.
const (
	fieldAddKind  protowire.Number = 1
	fieldAddName  protowire.Number = 2
	fieldAddColor protowire.Number = 3
	fieldAddWidth protowire.Number = 4
	fieldAddSize  protowire.Number = 5
)

// UpdateData fields.
const (
	fieldUpdatePlotID protowire.Number = 1
	fieldUpdateX      protowire.Number = 2
	fieldUpdateY      protowire.Number = 3
	fieldUpdateColors protowire.Number = 4
)

// SetAxis fields.
const (
	fieldAxisXLabel protowire.Number = 1
	fieldAxisYLabel protowire.Number = 2
	fieldAxisXRange protowire.Number = 3
	fieldAxisYRange protowire.Number = 4

	fieldRangeMin protowire.Number = 1
	fieldRangeMax protowire.Number = 2
)

// Event envelope fields.
const (
	fieldReady protowire.Number = 1
	fieldKey   protowire.Number = 2

	fieldKeyCode protowire.Number = 1
)

// AppendCommand appends the wire encoding of c to b.
func AppendCommand(b []byte, c Command) ([]byte, error) {
	switch m := c.(type) {
	case AddPlot:
		return appendMessage(b, fieldAddPlot, appendAddPlot(nil, m)), nil
	case *AddPlot:
		return appendMessage(b, fieldAddPlot, appendAddPlot(nil, *m)), nil
	case UpdateData:
		return appendMessage(b, fieldUpdateData, appendUpdateData(nil, m)), nil
	case *UpdateData:
		return appendMessage(b, fieldUpdateData, appendUpdateData(nil, *m)), nil
	case SetAxis:
		return appendMessage(b, fieldSetAxis, appendSetAxis(nil, m)), nil
	case *SetAxis:
		return appendMessage(b, fieldSetAxis, appendSetAxis(nil, *m)), nil
	default:
		return b, fmt.Errorf("%w: %T", ErrUnsupported, c)
	}
}

// UnmarshalCommand decodes one command payload.
func UnmarshalCommand(b []byte) (Command, error) {
	var cmd Command
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return 0, nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		var err error
		switch num {
		case fieldAddPlot:
			cmd, err = unmarshalAddPlot(v)
		case fieldUpdateData:
			cmd, err = unmarshalUpdateData(v)
		case fieldSetAxis:
			cmd, err = unmarshalSetAxis(v)
		default:
			return 0, nil
		}
		return n, err
	})
	if err != nil {
		return nil, err
	}
	if cmd == nil {
		return nil, fmt.Errorf("%w: empty command", ErrMalformed)
	}
	return cmd, nil
}

// AppendEvent appends the wire encoding of e to b.
func AppendEvent(b []byte, e Event) ([]byte, error) {
	switch m := e.(type) {
	case Ready:
		return appendMessage(b, fieldReady, nil), nil
	case Key:
		inner := protowire.AppendTag(nil, fieldKeyCode, protowire.VarintType)
		inner = protowire.AppendVarint(inner, uint64(m.Code))
		return appendMessage(b, fieldKey, inner), nil
	default:
		return b, fmt.Errorf("%w: %T", ErrUnsupported, e)
	}
}

// UnmarshalEvent decodes one event payload.
func UnmarshalEvent(b []byte) (Event, error) {
	var ev Event
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return 0, nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		switch num {
		case fieldReady:
			ev = Ready{}
		case fieldKey:
			var k Key
			err := walk(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				if num != fieldKeyCode || typ != protowire.VarintType {
					return 0, nil
				}
				code, n := protowire.ConsumeVarint(b)
				k.Code = KeyCode(code)
				return n, nil
			})
			if err != nil {
				return n, err
			}
			ev = k
		default:
			return 0, nil
		}
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, fmt.Errorf("%w: empty event", ErrMalformed)
	}
	return ev, nil
}

func appendAddPlot(b []byte, m AddPlot) []byte {
	b = protowire.AppendTag(b, fieldAddKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Kind))
	b = appendString(b, fieldAddName, m.Style.Name)
	b = appendString(b, fieldAddColor, m.Style.Color)
	b = appendDouble(b, fieldAddWidth, m.Style.Width)
	b = appendDouble(b, fieldAddSize, m.Style.Size)
	return b
}

func unmarshalAddPlot(b []byte) (AddPlot, error) {
	var m AddPlot
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldAddKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Kind = Kind(v)
			return n, nil
		case num == fieldAddName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.Style.Name = v
			return n, nil
		case num == fieldAddColor && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.Style.Color = v
			return n, nil
		case num == fieldAddWidth && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			m.Style.Width = math.Float64frombits(v)
			return n, nil
		case num == fieldAddSize && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			m.Style.Size = math.Float64frombits(v)
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return AddPlot{}, err
	}
	if !m.Kind.Valid() {
		return AddPlot{}, fmt.Errorf("%w: unknown plot kind %d", ErrMalformed, m.Kind)
	}
	return m, nil
}

func appendUpdateData(b []byte, m UpdateData) []byte {
	b = protowire.AppendTag(b, fieldUpdatePlotID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.PlotID))
	b = appendDoubles(b, fieldUpdateX, m.X)
	b = appendDoubles(b, fieldUpdateY, m.Y)
	if m.Colors != nil {
		b = appendDoubles(b, fieldUpdateColors, m.Colors)
	}
	return b
}

func unmarshalUpdateData(b []byte) (UpdateData, error) {
	var m UpdateData
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == fieldUpdatePlotID && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if v > math.MaxInt32 {
				return n, fmt.Errorf("%w: plot id %d out of range", ErrMalformed, v)
			}
			m.PlotID = int(v)
			return n, nil
		}
		if typ != protowire.BytesType {
			return 0, nil
		}
		var dst *[]float64
		switch num {
		case fieldUpdateX:
			dst = &m.X
		case fieldUpdateY:
			dst = &m.Y
		case fieldUpdateColors:
			dst = &m.Colors
		default:
			return 0, nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		vals, err := consumeDoubles(v)
		*dst = vals
		return n, err
	})
	if err != nil {
		return UpdateData{}, err
	}
	if m.X == nil {
		m.X = []float64{}
	}
	if m.Y == nil {
		m.Y = []float64{}
	}
	return m, nil
}

func appendSetAxis(b []byte, m SetAxis) []byte {
	if m.XLabel != nil {
		b = protowire.AppendTag(b, fieldAxisXLabel, protowire.BytesType)
		b = protowire.AppendString(b, *m.XLabel)
	}
	if m.YLabel != nil {
		b = protowire.AppendTag(b, fieldAxisYLabel, protowire.BytesType)
		b = protowire.AppendString(b, *m.YLabel)
	}
	if m.XRange != nil {
		b = appendMessage(b, fieldAxisXRange, appendRange(nil, *m.XRange))
	}
	if m.YRange != nil {
		b = appendMessage(b, fieldAxisYRange, appendRange(nil, *m.YRange))
	}
	return b
}

func unmarshalSetAxis(b []byte) (SetAxis, error) {
	var m SetAxis
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return 0, nil
		}
		switch num {
		case fieldAxisXLabel, fieldAxisYLabel:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return n, nil
			}
			if num == fieldAxisXLabel {
				m.XLabel = &v
			} else {
				m.YLabel = &v
			}
			return n, nil
		case fieldAxisXRange, fieldAxisYRange:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			r, err := unmarshalRange(v)
			if err != nil {
				return n, err
			}
			if num == fieldAxisXRange {
				m.XRange = &r
			} else {
				m.YRange = &r
			}
			return n, nil
		}
		return 0, nil
	})
	return m, err
}

func appendRange(b []byte, r Range) []byte {
	b = protowire.AppendTag(b, fieldRangeMin, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(r.Min))
	b = protowire.AppendTag(b, fieldRangeMax, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(r.Max))
	return b
}

func unmarshalRange(b []byte) (Range, error) {
	var r Range
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.Fixed64Type {
			return 0, nil
		}
		switch num {
		case fieldRangeMin:
			v, n := protowire.ConsumeFixed64(b)
			r.Min = math.Float64frombits(v)
			return n, nil
		case fieldRangeMax:
			v, n := protowire.ConsumeFixed64(b)
			r.Max = math.Float64frombits(v)
			return n, nil
		}
		return 0, nil
	})
	return r, err
}

// walk iterates the fields of a message. fn returns the number of value
// bytes it consumed, or 0 to have the field skipped as unknown.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func appendMessage(b []byte, num protowire.Number, inner []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// appendDoubles writes v as a packed repeated double.
func appendDoubles(b []byte, num protowire.Number, v []float64) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(8*len(v)))
	for _, f := range v {
		b = protowire.AppendFixed64(b, math.Float64bits(f))
	}
	return b
}

func consumeDoubles(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("%w: packed double field of %d bytes", ErrMalformed, len(b))
	}
	out := make([]float64, 0, len(b)/8)
	for len(b) > 0 {
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		out = append(out, math.Float64frombits(v))
		b = b[n:]
	}
	return out, nil
}
