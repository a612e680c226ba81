package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/wolfman30/telehealth-ai-platform/internal/vitals"
	"github.com/wolfman30/telehealth-ai-platform/internal/wearables"
)

// VitalsFile is a scripted series of device syncs for one patient.
type VitalsFile struct {
	PatientID   string                `json:"patient_id"`
	PatientName string                `json:"patient_name"`
	DeviceID    string                `json:"device_id"`
	Readings    []vitals.ReadingInput `json:"readings"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run scripts/seed-vitals.go <vitals-file.json>")
		fmt.Println("Example: go run scripts/seed-vitals.go testdata/sample-patient-vitals.json")
		os.Exit(1)
	}

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	vitalsFile := os.Args[1]

	fmt.Printf("🌱 Seeding Patient Vitals\n")
	fmt.Printf("============================\n")
	fmt.Printf("API URL: %s\n", apiURL)
	fmt.Printf("Vitals file: %s\n\n", vitalsFile)

	data, err := os.ReadFile(vitalsFile)
	if err != nil {
		fmt.Printf("❌ Error reading file: %v\n", err)
		os.Exit(1)
	}

	var series VitalsFile
	if err := json.Unmarshal(data, &series); err != nil {
		fmt.Printf("❌ Error parsing JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Patient: %s (%s)\n", series.PatientName, series.PatientID)
	fmt.Printf("Readings to send: %d\n\n", len(series.Readings))

	ctx := context.Background()
	client := &http.Client{Timeout: 30 * time.Second}
	url := apiURL + "/api/vitals"
	// Readings are spaced one minute apart ending now.
	start := time.Now().UTC().Add(-time.Duration(len(series.Readings)) * time.Minute)
	totalAlerts := 0

	for i, reading := range series.Readings {
		reading.PatientID = series.PatientID
		reading.PatientName = series.PatientName
		reading.DeviceID = series.DeviceID
		ts := start.Add(time.Duration(i) * time.Minute)
		reading.Timestamp = &ts

		payload, err := json.Marshal(reading)
		if err != nil {
			fmt.Printf("   ❌ Error marshaling reading %d: %v\n", i+1, err)
			continue
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			fmt.Printf("   ❌ Error creating request: %v\n", err)
			continue
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(httpReq)
		if err != nil {
			fmt.Printf("   ❌ Error sending request: %v\n", err)
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			fmt.Printf("   ❌ Reading %d failed (status %d): %s\n", i+1, resp.StatusCode, string(body))
			continue
		}
		var result wearables.IngestResult
		if err := json.Unmarshal(body, &result); err != nil {
			fmt.Printf("   ✅ Reading %d accepted\n", i+1)
			continue
		}
		totalAlerts += len(result.Alerts)
		fmt.Printf("   ✅ Reading %d: %d alert(s), risk %s\n", i+1, len(result.Alerts), result.Risk.Level)
		for _, a := range result.Alerts {
			fmt.Printf("      - [%s] %s\n", a.Severity, a.Message)
		}
		if result.CareTeamNotified {
			fmt.Printf("      📟 care team paged\n")
		}

		time.Sleep(250 * time.Millisecond)
	}

	fmt.Printf("\n✅ Vitals seeding complete! %d alert(s) raised\n", totalAlerts)
	fmt.Printf("\n📝 Next steps:\n")
	fmt.Printf("  1. Review alerts: curl %s/api/patients/%s/alerts\n", apiURL, series.PatientID)
	fmt.Printf("  2. Check the patient record: curl %s/api/patients/%s\n", apiURL, series.PatientID)
	fmt.Printf("  3. Watch live alerts on ws://.../api/patients/%s/alerts/stream\n", series.PatientID)
}
