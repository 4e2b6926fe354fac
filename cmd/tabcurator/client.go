package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tabcurator/tabcurator/internal/channel"
)

// postMessage sends one action to the running daemon over the local HTTP API
// and decodes the routed response.
func postMessage(action string, payload interface{}) (channel.Response, error) {
	msg, err := channel.NewMessage(action, payload)
	if err != nil {
		return channel.Response{}, err
	}
	return postRaw(msg)
}

func postRaw(msg channel.Message) (channel.Response, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return channel.Response{}, fmt.Errorf("encode message: %w", err)
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/messages", cfg.Server.Port)
	httpClient := &http.Client{Timeout: 15 * time.Second}

	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return channel.Response{}, fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()

	var out channel.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return channel.Response{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && out.Error == "" {
		return channel.Response{}, fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	return out, nil
}

// mustResult runs the action and unmarshals its result into v, converting
// routed errors into CLI errors.
func mustResult(action string, payload interface{}, v interface{}) error {
	resp, err := postMessage(action, payload)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("%s failed: %s", action, resp.Error)
	}
	if v == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, v); err != nil {
		return fmt.Errorf("decode %s result: %w", action, err)
	}
	return nil
}
