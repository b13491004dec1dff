// Package influx ships unit telemetry and connector health to InfluxDB.
// When the server is unreachable the points are appended to a gzipped
// line-protocol backup file instead, so a metrics outage never loses data.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/ctrue/dcs-connect/internal/config"
	"github.com/ctrue/dcs-connect/pkg/dcs"
)

// Bucket names used by the connector.
const (
	BucketUnitTelemetry = "unit_telemetry"
	BucketSessions      = "sessions"
	BucketConnector     = "connector_performance"
)

// DefaultBucketNames are created on connect when missing.
var DefaultBucketNames = []string{
	BucketUnitTelemetry,
	BucketSessions,
	BucketConnector,
}

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string

	cfg config.InfluxConfig
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, cfg config.InfluxConfig, backupPath string) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		BucketNames: DefaultBucketNames,
		Logger:      log,
		BackupPath:  backupPath,
		cfg:         cfg,
	}
}

// Connect establishes a connection to InfluxDB. An unreachable server is
// not an error, the manager degrades to the backup writer.
func (m *Manager) Connect() error {
	if !m.cfg.Enabled {
		return errors.New("influx.enabled is false")
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(context.Background())
	if err != nil || !running {
		m.IsValid = false
		if m.BackupWriter == nil {
			m.Logger.Info().Str("backupPath", m.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %v", err)
			}
			m.BackupWriter = gzip.NewWriter(file)
		}
	} else {
		m.IsValid = true
	}

	if m.IsValid {
		if err := m.setupOrganizationAndBuckets(); err != nil {
			return err
		}
		m.CreateWriters()
		m.Logger.Info().Msg("InfluxDB client initialized")
	} else {
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
	}

	return nil
}

func (m *Manager) setupOrganizationAndBuckets() error {
	ctx := context.Background()
	orgName := m.cfg.Org

	_, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		_, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Error().Err(err).Str("org", orgName).Msg("Error getting organization")
		return err
	}

	// 90 day retention on all connector buckets
	for _, bucket := range m.BucketNames {
		_, err = m.Client.BucketsAPI().FindBucketByName(ctx, bucket)
		if err != nil {
			m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

			rule := domain.RetentionRuleTypeExpire
			_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
				Type:         &rule,
				EverySeconds: 60 * 60 * 24 * 90,
			})
			if err != nil {
				m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
				return err
			}
		}
	}

	return nil
}

// CreateWriters creates write APIs for all configured buckets.
func (m *Manager) CreateWriters() {
	for _, bucket := range m.BucketNames {
		m.Logger.Trace().Str("bucket", bucket).Msg("Creating InfluxDB writer")
		m.Writers[bucket] = m.Client.WriteAPI(m.cfg.Org, bucket)

		errorsCh := m.Writers[bucket].Errors()
		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, errorsCh)
	}

	m.Logger.Debug().Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		if _, ok := m.Writers[bucket]; !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		m.Writers[bucket].WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Duration(1*time.Nanosecond))
	if _, err := m.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
	}
	return nil
}

// Close flushes the writers and the backup file.
func (m *Manager) Close() {
	if m.Client != nil {
		m.Client.Close()
	}
	if m.BackupWriter != nil {
		_ = m.BackupWriter.Close()
	}
}

// UnitPoint builds a telemetry point for one unit snapshot.
func UnitPoint(missionTime float64, unit dcs.Unit) *influxdb2_write.Point {
	return influxdb2.NewPointWithMeasurement("unit_state").
		AddTag("unitName", unit.Name).
		AddTag("typeName", unit.Type).
		AddTag("coalition", unit.Coalition.String()).
		AddTag("groupName", unit.GroupName).
		AddField("unitId", int64(unit.ID)).
		AddField("latitude", unit.Latitude).
		AddField("longitude", unit.Longitude).
		AddField("altitude", unit.Altitude).
		AddField("heading", unit.Heading).
		AddField("speed", unit.Speed).
		AddField("missionTime", missionTime).
		AddField("playerName", unit.PlayerName).
		SetTime(time.Now())
}

// StatusPoint builds a point for a connection status transition.
func StatusPoint(addr string, change dcs.StatusChange) *influxdb2_write.Point {
	connected := int64(0)
	if change.Connected {
		connected = 1
	}
	return influxdb2.NewPointWithMeasurement("connection_status").
		AddTag("server", addr).
		AddField("connected", connected).
		AddField("reason", change.Reason).
		SetTime(time.Now())
}

// PipelinePoint builds a health point for the ingestion pipeline.
func PipelinePoint(addr string, unitQueueDepth, eventQueueDepth, recorderQueueDepth int) *influxdb2_write.Point {
	return influxdb2.NewPointWithMeasurement("pipeline").
		AddTag("server", addr).
		AddField("unitQueueDepth", int64(unitQueueDepth)).
		AddField("eventQueueDepth", int64(eventQueueDepth)).
		AddField("recorderQueueDepth", int64(recorderQueueDepth)).
		SetTime(time.Now())
}
