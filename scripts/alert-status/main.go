package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	httpmiddleware "github.com/wolfman30/telehealth-ai-platform/internal/http/middleware"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: go run ./scripts/alert-status <patient_id> <alert_id> <acknowledged|resolved>")
		fmt.Println("Example: go run ./scripts/alert-status p-1001 01929b1e-7a3c-7c11-9d2e-3f0a6b2c4d11 acknowledged")
		os.Exit(1)
	}

	patientID := os.Args[1]
	alertID := os.Args[2]
	status := os.Args[3]

	secret := os.Getenv("CLINICIAN_JWT_SECRET")
	if secret == "" {
		fmt.Println("Error: CLINICIAN_JWT_SECRET environment variable not set")
		os.Exit(1)
	}

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	clinician := os.Getenv("CLINICIAN_ID")
	if clinician == "" {
		clinician = "cli-clinician"
	}

	claims := httpmiddleware.ClinicianClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clinician,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
		Role: httpmiddleware.RoleClinician,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		fmt.Printf("Error signing token: %v\n", err)
		os.Exit(1)
	}

	payload, _ := json.Marshal(map[string]string{"status": status})
	url := fmt.Sprintf("%s/api/patients/%s/alerts/%s", apiURL, patientID, alertID)
	fmt.Printf("Setting alert %s for patient %s to %s...\n", alertID, patientID, status)

	req, err := http.NewRequest(http.MethodPatch, url, bytes.NewReader(payload))
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Authorization", "Bearer "+tokenString)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Error: HTTP %d\n", resp.StatusCode)
		fmt.Printf("Response: %s\n", string(body))
		os.Exit(1)
	}

	var alert map[string]any
	if err := json.Unmarshal(body, &alert); err != nil {
		fmt.Printf("Response: %s\n", string(body))
		return
	}
	pretty, _ := json.MarshalIndent(alert, "", "  ")
	fmt.Printf("Success!\n%s\n", string(pretty))
}
