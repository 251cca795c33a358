package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// requestTimeout bounds every call to the daemon.
const requestTimeout = 10 * time.Second

var httpClient = &http.Client{Timeout: requestTimeout}

// apiGet issues a GET against the daemon and decodes the data
// envelope into v.
func apiGet(path string, v any) error {
	resp, err := httpClient.Get(daemonAddr + path)
	if err != nil {
		return fmt.Errorf("failed to reach daemon at %s: %w",
			daemonAddr, err)
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp, v)
}

// apiPost issues a POST against the daemon and decodes the data
// envelope into v. body may be nil.
func apiPost(path string, body, v any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	resp, err := httpClient.Post(
		daemonAddr+path, "application/json", &buf,
	)
	if err != nil {
		return fmt.Errorf("failed to reach daemon at %s: %w",
			daemonAddr, err)
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp, v)
}

// decodeEnvelope unwraps the API's {"data": ...} / {"error": ...}
// envelope.
func decodeEnvelope(resp *http.Response, v any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil &&
			apiErr.Error.Message != "" {

			return fmt.Errorf("%s: %s", apiErr.Error.Code,
				apiErr.Error.Message)
		}

		return fmt.Errorf("daemon returned status %d",
			resp.StatusCode)
	}

	if v == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to parse daemon response: %w", err)
	}

	return json.Unmarshal(envelope.Data, v)
}

// outputJSON prints v as indented JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
