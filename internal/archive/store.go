package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/samber/lo"

	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
	"github.com/wolfman30/telehealth-ai-platform/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store archives completed diagnoses to S3.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
	now      func() time.Time
}

var _ diagnosis.Observer = (*Store)(nil)

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		bucket:   bucket,
		s3Client: s3Client,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Enabled returns true if archival is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// DiagnosisCompleted archives rec.
func (s *Store) DiagnosisCompleted(ctx context.Context, rec diagnosis.Record) error {
	return s.ArchiveDiagnosis(ctx, rec)
}

// BuildRecord converts an analysis into its archived form.
func BuildRecord(rec diagnosis.Record, archivedAt time.Time) DiagnosisRecord {
	text := strings.Join(lo.Map(rec.Symptoms, func(s diagnosis.Symptom, _ int) string {
		return s.Name + " " + s.Description
	}), " ")
	return DiagnosisRecord{
		Version:     recordVersion,
		RecordID:    rec.ID,
		PatientHash: HashPatientID(rec.PatientID),
		ArchivedAt:  archivedAt,
		Provider:    rec.Provider,
		LatencyMs:   rec.Latency.Milliseconds(),
		Labels: Labels{
			Severity:          string(rec.Diagnosis.Severity),
			AIGenerated:       rec.Diagnosis.AIGenerated,
			SeekImmediateCare: rec.Diagnosis.SeekImmediateCare,
			EmergencyKeywords: diagnosis.MatchedEmergencyKeywords(text),
			SymptomCount:      len(rec.Symptoms),
		},
		Symptoms:  ScrubSymptoms(rec.Symptoms),
		Diagnosis: rec.Diagnosis,
	}
}

// ArchiveDiagnosis writes the record as JSON to S3 and appends to the
// monthly manifest. Manifest failures are logged only.
func (s *Store) ArchiveDiagnosis(ctx context.Context, rec diagnosis.Record) error {
	if !s.Enabled() {
		return nil
	}
	if rec.ID == "" {
		return errors.New("archive: record id required")
	}

	now := rec.CreatedAt.UTC()
	if rec.CreatedAt.IsZero() {
		now = s.now()
	}
	record := BuildRecord(rec, now)
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("archive: marshal record: %w", err)
	}

	s3Key := fmt.Sprintf("diagnoses/v1/by-date/%d/%02d/%02d/%s.json",
		now.Year(), now.Month(), now.Day(), rec.ID)
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", s3Key, err)
	}

	s.logger.Info("archived diagnosis to S3",
		"record_id", rec.ID,
		"s3_key", s3Key,
		"provider", rec.Provider,
		"severity", record.Labels.Severity,
	)

	entry := ManifestEntry{
		RecordID:          rec.ID,
		S3Key:             s3Key,
		Provider:          rec.Provider,
		Severity:          record.Labels.Severity,
		SeekImmediateCare: record.Labels.SeekImmediateCare,
		ArchivedAt:        now.Format(time.RFC3339),
	}
	if err := s.AppendManifest(ctx, now, entry); err != nil {
		s.logger.Warn("failed to append manifest", "error", err, "record_id", rec.ID)
	}
	return nil
}

// ManifestKey is the monthly manifest object key for t.
func ManifestKey(t time.Time) string {
	return fmt.Sprintf("diagnoses/v1/manifests/%d-%02d.jsonl", t.Year(), t.Month())
}

// AppendManifest appends a JSONL line to the manifest for the month of at.
// S3 has no append, so this is a read-modify-write.
func (s *Store) AppendManifest(ctx context.Context, at time.Time, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}
	manifestKey := ManifestKey(at)

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	switch {
	case err == nil:
		existing, err = io.ReadAll(getResp.Body)
		getResp.Body.Close()
		if err != nil {
			return fmt.Errorf("archive: read manifest: %w", err)
		}
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", manifestKey)
	default:
		return fmt.Errorf("archive: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "StatusCode: 404")
}
