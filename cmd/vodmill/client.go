package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// apiClient is a thin HTTP client for the daemon API.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: base,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type videoRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	S3URL     string `json:"s3Url"`
	StreamURL string `json:"streamUrl,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type videoListing struct {
	Items    []videoRecord `json:"items"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	Total    int           `json:"total"`
}

type daemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	JobDBPath    string             `json:"jobDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	InFlight     int                `json:"inFlight"`
	Jobs         map[string]int     `json:"jobs"`
	Dependencies []dependencyStatus `json:"dependencies"`
}

type dependencyStatus struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

type streamEvent struct {
	Kind      string `json:"event"`
	JobID     string `json:"id"`
	Status    string `json:"status,omitempty"`
	RemoteURL string `json:"remoteUrl,omitempty"`
}

func (c *apiClient) status(ctx context.Context) (*daemonStatus, error) {
	var status daemonStatus
	if err := c.getJSON(ctx, "/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *apiClient) list(ctx context.Context, page, pageSize int, title string, caseSensitive bool) (*videoListing, error) {
	params := make([]string, 0, 4)
	if page > 0 {
		params = append(params, "page="+strconv.Itoa(page))
	}
	if pageSize > 0 {
		params = append(params, "pageSize="+strconv.Itoa(pageSize))
	}
	if title != "" {
		params = append(params, "title="+title)
	}
	if caseSensitive {
		params = append(params, "caseSensitive=1")
	}
	path := "/api/videos"
	if len(params) > 0 {
		path += "?" + strings.Join(params, "&")
	}

	var listing videoListing
	if err := c.getJSON(ctx, path, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

func (c *apiClient) get(ctx context.Context, id string) (*videoRecord, error) {
	var record videoRecord
	if err := c.getJSON(ctx, "/api/videos/"+id, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *apiClient) delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/api/videos/"+id, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return apiError(resp)
	}
	return nil
}

// upload streams the file as multipart form data and returns the accepted job.
func (c *apiClient) upload(ctx context.Context, path, title string, qualities []string) (*videoRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open video file: %w", err)
	}
	defer file.Close()

	body, contentType := multipartBody(file, filepath.Base(path), title, qualities)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/videos", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return nil, apiError(resp)
	}

	var record videoRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &record, nil
}

// events subscribes to the daemon's event stream and invokes fn per event
// until the context is cancelled or the stream closes.
func (c *apiClient) events(ctx context.Context, fn func(streamEvent)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/events", nil)
	if err != nil {
		return err
	}
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var evt streamEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &evt); err != nil {
			continue
		}
		fn(evt)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return scanner.Err()
}

func (c *apiClient) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("daemon returned %d", resp.StatusCode)
}

func multipartBody(file io.Reader, filename, title string, qualities []string) (io.Reader, string) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			part, err := writer.CreateFormFile("video", filename)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, file); err != nil {
				return err
			}
			if title != "" {
				if err := writer.WriteField("title", title); err != nil {
					return err
				}
			}
			if len(qualities) > 0 {
				if err := writer.WriteField("qualities", strings.Join(qualities, ",")); err != nil {
					return err
				}
			}
			return writer.Close()
		}()
		pw.CloseWithError(err)
	}()
	return pr, writer.FormDataContentType()
}
