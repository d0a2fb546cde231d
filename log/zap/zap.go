// Package zap adapts a zap logger to cacheloader.Logger.
package zap

import (
	"github.com/unkn0wn-root/cacheloader"
	"go.uber.org/zap"
)

var _ cacheloader.Logger = Logger{}

type Logger struct{ L *zap.Logger }

func (z Logger) Debug(msg string, f cacheloader.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f cacheloader.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f cacheloader.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f cacheloader.Fields) { z.L.Error(msg, fields(f)...) }

func fields(f cacheloader.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			out = append(out, zap.Error(err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
