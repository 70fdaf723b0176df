package eep

import (
	"errors"
	"fmt"
	"sort"

	"enocean-go-home/internal/telegram"
)

var (
	ErrUnknownProfile     = errors.New("unknown profile")
	ErrUnrecognizedValue  = errors.New("unrecognized value")
	ErrUnsupportedCommand = errors.New("unsupported command")
)

// UnrecognizedValue reports a profile field holding a value outside its
// documented enumeration. It matches ErrUnrecognizedValue with errors.Is.
type UnrecognizedValue struct {
	Field string
	Value byte
}

func (e *UnrecognizedValue) Error() string {
	return fmt.Sprintf("unrecognized value 0x%02X in %s", e.Value, e.Field)
}

func (e *UnrecognizedValue) Is(target error) bool {
	return target == ErrUnrecognizedValue
}

// Result is the outcome of decoding one telegram.
type Result struct {
	Profile      ProfileKey     `json:"profile"`
	Values       []ChannelValue `json:"values"`
	Unrecognized []error        `json:"-"`
}

type options struct {
	rocker RockerMapping
}

// Option configures a Dispatcher.
type Option func(*options)

// WithRockerMapping selects the rocker switch ON/OFF convention.
func WithRockerMapping(m RockerMapping) Option {
	return func(o *options) { o.rocker = m }
}

// Dispatcher selects the profile interpreter for a telegram. It is immutable
// after construction and safe for concurrent use.
type Dispatcher struct {
	opts  options
	table map[byte]rorgEntry
}

// NewDispatcher creates a dispatcher for the built-in profiles.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{table: buildTable()}
	for _, o := range opts {
		o(&d.opts)
	}
	return d
}

// RockerMapping returns the configured rocker convention.
func (d *Dispatcher) RockerMapping() RockerMapping {
	return d.opts.rocker
}

// Lookup returns the profile registered for key, or nil.
func (d *Dispatcher) Lookup(key ProfileKey) *Profile {
	e, ok := d.table[key.RORG]
	if !ok {
		return nil
	}
	if e.byRORG != nil {
		return e.byRORG
	}
	return e.funcs[key.Func][key.Type]
}

// Profiles lists the supported profiles ordered by key.
func (d *Dispatcher) Profiles() []*Profile {
	seen := make(map[*Profile]bool)
	var out []*Profile
	for _, e := range d.table {
		if e.byRORG != nil && !seen[e.byRORG] {
			seen[e.byRORG] = true
			out = append(out, e.byRORG)
		}
		for _, types := range e.funcs {
			for _, p := range types {
				if !seen[p] {
					seen[p] = true
					out = append(out, p)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// Decode interprets t under key. Unknown keys return an empty result and an
// error matching ErrUnknownProfile. Field values outside a profile's
// enumeration are listed in Result.Unrecognized; the other fields are still
// decoded.
func (d *Dispatcher) Decode(key ProfileKey, t telegram.Telegram) (Result, error) {
	p := d.Lookup(key)
	if p == nil {
		return Result{Profile: key}, fmt.Errorf("%w: %s", ErrUnknownProfile, key)
	}
	if t.RORG != p.Key.RORG {
		return Result{Profile: key}, fmt.Errorf("%w: rorg 0x%02X does not match profile %s",
			telegram.ErrMalformedTelegram, t.RORG, p.Key)
	}
	if want, _ := telegram.PayloadLength(p.Key.RORG); len(t.Payload) != want {
		return Result{Profile: key}, fmt.Errorf("%w: profile %s wants %d data bytes, got %d",
			telegram.ErrMalformedTelegram, p.Key, want, len(t.Payload))
	}
	values, unrecognized := p.decode(t, &d.opts)
	return Result{Profile: p.Key, Values: values, Unrecognized: unrecognized}, nil
}

// Encode builds the telegram that carries cmd to a device of profile key.
// localID is the device's hexadecimal sender id.
func (d *Dispatcher) Encode(cmd Command, key ProfileKey, localID string) (telegram.Telegram, error) {
	p := d.Lookup(key)
	if p == nil {
		return telegram.Telegram{}, fmt.Errorf("%w: %s", ErrUnknownProfile, key)
	}
	if p.encode == nil || !p.CanEncode(cmd.Channel) {
		return telegram.Telegram{}, fmt.Errorf("%w: %s on %s", ErrUnsupportedCommand, cmd.Channel, p.Key)
	}
	sender, err := telegram.ParseLocalID(localID)
	if err != nil {
		return telegram.Telegram{}, err
	}
	payload, err := p.encode(cmd, &d.opts)
	if err != nil {
		return telegram.Telegram{}, err
	}
	return telegram.New(p.Key.RORG, payload, sender), nil
}
