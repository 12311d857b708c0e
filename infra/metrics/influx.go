package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/chargesim/core/metrics"
	"github.com/kilianp07/chargesim/infra/logger"
)

// InfluxSink writes simulation events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordSimulation writes the headline figures of a simulation and its hourly
// demand profile in a single request. Deletions only write a marker point.
func (s *InfluxSink) RecordSimulation(ev coremetrics.SimulationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if ev.Operation == coremetrics.OpDelete {
		p := write.NewPointWithMeasurement("simulation_deleted").
			AddTag("simulation_id", ev.ID).
			AddField("count", 1).
			SetTime(ev.Time)
		return s.writeAPI.WritePoint(ctx, p)
	}

	in, out := ev.Inputs, ev.Outputs
	p := simulationPoint("simulation_result", ev).
		AddField("charge_points", in.ChargePointsCount).
		AddField("arrival_multiplier", round3(in.ArrivalMultiplier)).
		AddField("car_consumption", round3(in.CarConsumption)).
		AddField("charging_power_kw", round3(in.ChargingPower)).
		AddField("theoretical_max_power_kw", out.TheoreticalMaxPower).
		AddField("actual_max_power_kw", out.ActualMaxPower).
		AddField("concurrency_factor", out.ConcurrencyFactor).
		AddField("total_energy_kwh", out.TotalEnergyCharged).
		AddField("total_events", out.TotalChargingEvents).
		AddField("daily_events", out.DailyEvents).
		AddField("avg_duration_min", out.AverageChargingDuration).
		SetTime(ev.Time)
	points := make([]*write.Point, 0, len(out.HourlyData)+1)
	points = append(points, p)
	for _, h := range out.HourlyData {
		hp := simulationPoint("simulation_hourly_demand", ev).
			AddTag("hour", strconv.Itoa(h.Hour)).
			AddField("power_kw", h.PowerDemand).
			AddField("active_charge_points", h.ActiveChargePoints).
			SetTime(ev.Time)
		points = append(points, hp)
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordRejection writes the refused inputs.
func (s *InfluxSink) RecordRejection(ev coremetrics.RejectionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("simulation_rejected").
		AddTag("reason", ev.Reason).
		AddField("charge_points", ev.Inputs.ChargePointsCount).
		AddField("arrival_multiplier", round3(ev.Inputs.ArrivalMultiplier)).
		AddField("car_consumption", round3(ev.Inputs.CarConsumption)).
		AddField("charging_power_kw", round3(ev.Inputs.ChargingPower)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordStoreError writes a failed persistence call.
func (s *InfluxSink) RecordStoreError(ev coremetrics.StoreErrorEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("simulation_store_error").
		AddTag("operation", ev.Operation)
	if ev.ID != "" {
		p = p.AddTag("simulation_id", ev.ID)
	}
	msg := ""
	if ev.Err != nil {
		msg = ev.Err.Error()
	}
	p = p.AddField("error", msg).SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func simulationPoint(measurement string, ev coremetrics.SimulationEvent) *write.Point {
	p := write.NewPointWithMeasurement(measurement).
		AddTag("operation", ev.Operation)
	if ev.ID != "" {
		p = p.AddTag("simulation_id", ev.ID)
	}
	return p
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
