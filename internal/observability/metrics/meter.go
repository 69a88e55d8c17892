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

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
}

// New creates a new meter instance.
// When enabled, instruments are exported through the default Prometheus
// registry and served alongside the native collectors on /metrics.
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return NewNoop(), nil
	}

	exporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return &Meter{
		meter:    provider.Meter(serviceName),
		provider: provider,
	}, nil
}

// NewNoop returns a meter whose instruments record nothing.
func NewNoop() *Meter {
	return &Meter{meter: noop.NewMeterProvider().Meter("noop")}
}

// Shutdown flushes and stops the meter provider
func (m *Meter) Shutdown(ctx context.Context) error {
	if m.provider != nil {
		return m.provider.Shutdown(ctx)
	}
	return nil
}

// BackendInstruments are the instruments recorded around every call to the
// backend API.
type BackendInstruments struct {
	Requests metric.Int64Counter
	Duration metric.Float64Histogram
	Bytes    metric.Int64Counter
}

// Backend creates the backend call instruments
func (m *Meter) Backend() (*BackendInstruments, error) {
	requests, err := m.CreateCounter("console.backend.requests", "Backend requests by method, route and status class")
	if err != nil {
		return nil, err
	}
	duration, err := m.CreateHistogram("console.backend.duration", "Backend round trip duration", "s")
	if err != nil {
		return nil, err
	}
	bytes, err := m.CreateCounter("console.backend.response_bytes", "Bytes received from the backend")
	if err != nil {
		return nil, err
	}
	return &BackendInstruments{Requests: requests, Duration: duration, Bytes: bytes}, nil
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}
