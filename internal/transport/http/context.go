// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"context"

	"github.com/opentrusty/console/internal/authz"
)

type contextKey string

const (
	subjectKey contextKey = "subject"
)

// WithSubject stores the verified subject in ctx.
func WithSubject(ctx context.Context, subject *authz.Subject) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// GetSubject retrieves the verified subject from context, or nil.
func GetSubject(ctx context.Context) *authz.Subject {
	if val, ok := ctx.Value(subjectKey).(*authz.Subject); ok {
		return val
	}
	return nil
}

// GetUserID retrieves the authenticated User ID from context.
func GetUserID(ctx context.Context) string {
	if s := GetSubject(ctx); s != nil {
		return s.ID
	}
	return ""
}
