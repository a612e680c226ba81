package compliance

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/telehealth-ai-platform/internal/diagnosis"
)

func TestDisclaimerService_Levels(t *testing.T) {
	tests := []struct {
		name   string
		config DisclaimerConfig
		d      diagnosis.Diagnosis
		expect string
	}{
		{"disabled", DisclaimerConfig{Enabled: false}, diagnosis.Diagnosis{}, ""},
		{"short", DisclaimerConfig{Enabled: true, Level: DisclaimerShort}, diagnosis.Diagnosis{}, disclaimerShortText},
		{"default medium", DefaultDisclaimerConfig(), diagnosis.Diagnosis{}, disclaimerMediumText},
		{"ai upgrades to full", DefaultDisclaimerConfig(), diagnosis.Diagnosis{AIGenerated: true}, disclaimerFullText},
		{"custom wins", DisclaimerConfig{Enabled: true, CustomText: "Talk to your doctor."}, diagnosis.Diagnosis{AIGenerated: true}, "Talk to your doctor."},
		{"emergency appended", DisclaimerConfig{Enabled: true, Level: DisclaimerShort}, diagnosis.Diagnosis{SeekImmediateCare: true}, disclaimerShortText + " " + emergencyText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewDisclaimerService(nil, tt.config, nil)
			assert.Equal(t, tt.expect, svc.DisclaimerFor(context.Background(), "p1", tt.d))
		})
	}
}

func TestDisclaimerService_Audits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO compliance_audit_events").
		WithArgs(sqlmock.AnyArg(), EventDisclaimerAttached, "p1", nil, nil, "{}", []byte(`{"disclaimer_level":"full"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	svc := NewDisclaimerService(NewAuditService(db), DefaultDisclaimerConfig(), nil)
	text := svc.DisclaimerFor(context.Background(), "p1", diagnosis.Diagnosis{AIGenerated: true})
	assert.Equal(t, disclaimerFullText, text)
	assert.NoError(t, mock.ExpectationsWereMet())
}
