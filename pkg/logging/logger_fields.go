package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Domain helpers

func Component(name string) Field {
	return String("component", name)
}

func NodeID(id int64) Field {
	return Int64("node_id", id)
}

func SourceID(id int64) Field {
	return Int64("source_id", id)
}

func DestinationID(id int64) Field {
	return Int64("destination_id", id)
}

func Operation(op string) Field {
	return String("operation", op)
}

func RequestID(id string) Field {
	return String("request_id", id)
}

// Seq tags a field with the issue sequence of an asynchronous call
func Seq(n uint64) Field {
	return Uint64("seq", n)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}

func StatusCode(code int) Field {
	return Int("status_code", code)
}
