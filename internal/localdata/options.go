package localdata

import (
	"reflect"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/localdata/internal/metrics"
)

// Options configures a Manager. The zero value is usable.
type Options struct {
	// Kind names the entity type and its directory under the store root.
	// Defaults to the Go type name of the managed objects.
	Kind string
	// MaxAge is the age after which an entry is refreshed on the next fetch.
	// Zero disables automatic refresh.
	MaxAge time.Duration
	// Now is the clock used for staleness checks and fetch timestamps.
	Now func() time.Time
	// Logger receives disk and offline diagnostics. Defaults to the logrus
	// standard logger.
	Logger *logrus.Logger
	// IsTransient decides which fetch errors are absorbed as offline.
	// Defaults to IsTransient.
	IsTransient func(error) bool
	// Metrics is optional.
	Metrics *metrics.Collectors
}

func (o Options) withDefaults(zero any) Options {
	if o.Kind == "" {
		o.Kind = typeName(zero)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.IsTransient == nil {
		o.IsTransient = IsTransient
	}
	if o.MaxAge < 0 {
		o.MaxAge = 0
	}
	return o
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "Object"
	}
	return t.Name()
}
