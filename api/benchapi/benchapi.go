package benchapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

type WorkerStatus[T any] struct {
	Code StatusCode `json:"code"`
	Task TaskName   `json:"task,omitempty"`
	Last *T         `json:"last,omitempty"`
}

type APIWorkerStatus = WorkerStatus[Result[any]]

type StatusCode string

const (
	StatusIdle         StatusCode = "Idle"
	StatusBusy         StatusCode = "Busy"
	StatusDisconnected StatusCode = "Disconnected"
)

type TaskName string

const (
	TaskPrepare TaskName = "sparql/prepare"
	TaskCleanup TaskName = "sparql/cleanup"
	TaskRun     TaskName = "sparql/run"
)

type Result[T any] struct {
	Value T     `json:"value,omitempty"`
	Error error `json:"error,omitempty"`
}

func (r *Result[T]) MarshalJSON() ([]byte, error) {
	if r.Error != nil {
		return json.Marshal(map[string]string{
			"error": r.Error.Error(),
		})
	}
	var zero T
	if reflect.DeepEqual(r.Value, zero) {
		return []byte("{}"), nil
	}

	return json.Marshal(map[string]any{
		"value": r.Value,
	})
}

func (r *Result[T]) UnmarshalJSON(b []byte) error {
	*r = Result[T]{}

	tmp := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}

	if v, ok := tmp["error"]; ok {
		var errStr string
		if err := json.Unmarshal(v, &errStr); err != nil {
			return err
		}
		r.Error = errors.New(errStr)
	}

	if v, ok := tmp["value"]; ok {
		if err := json.Unmarshal(v, &r.Value); err != nil {
			return err
		}
	}

	return nil
}

type Percentage float64

func (p Percentage) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("%.2f%%", p))
}

func (p *Percentage) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*p = Percentage(value)
		return nil
	case string:
		if end := len(value) - 1; end >= 0 && value[end] == '%' {
			value = value[:end]
		}

		tmp, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		*p = Percentage(tmp)
		return nil
	default:
		return errors.New("invalid percentage")
	}
}

// Duration accepts Go duration strings ("1m30s") or nanosecond numbers.
type Duration struct {
	time.Duration
}

func NewDuration(d time.Duration) *Duration {
	return &Duration{Duration: d}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		return d.UnmarshalText([]byte(value))
	default:
		return errors.New("invalid duration")
	}
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText is used by the YAML and TOML decoders.
func (d *Duration) UnmarshalText(b []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	return nil
}

func GetOptValue[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}
