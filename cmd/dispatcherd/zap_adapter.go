// SPDX-License-Identifier: Apache-2.0

package main

import "go.uber.org/zap"

// zapAdapter satisfies dispatcher.Logger by forwarding to a
// *zap.SugaredLogger's structured *w methods.
type zapAdapter struct {
	l *zap.SugaredLogger
}

func newZapAdapter(l *zap.SugaredLogger) *zapAdapter {
	return &zapAdapter{l: l}
}

func (z *zapAdapter) Debug(msg string, kv ...any) { z.l.Debugw(msg, kv...) }
func (z *zapAdapter) Info(msg string, kv ...any)  { z.l.Infow(msg, kv...) }
func (z *zapAdapter) Warn(msg string, kv ...any)  { z.l.Warnw(msg, kv...) }
func (z *zapAdapter) Error(msg string, kv ...any) { z.l.Errorw(msg, kv...) }
