// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/models"
)

// StorageClientConfig tunes the storage HTTP client.
type StorageClientConfig struct {
	Timeout time.Duration
}

type storageClient struct {
	log *logger.Logger

	mu       sync.RWMutex
	client   *resty.Client
	endpoint string
}

// NewStorageClient constructs a StorageClient. The client is unusable until
// Configure installs an endpoint and credentials from a token exchange.
func NewStorageClient(cfg StorageClientConfig, log *logger.Logger) StorageClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	cli := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &storageClient{client: cli, log: log}
}

// Configure implements StorageClient.
func (s *storageClient) Configure(endpoint, username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoint = strings.TrimRight(endpoint, "/")
	s.client.SetBaseURL(s.endpoint)
	s.client.SetBasicAuth(username, password)
}

func (s *storageClient) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.endpoint == "" {
		return fmt.Errorf("storage client not configured with an endpoint")
	}
	return nil
}

// FetchInfoCollections implements StorageClient.
func (s *storageClient) FetchInfoCollections(ctx context.Context) (models.InfoCollections, *ServerResponse, error) {
	if err := s.ready(); err != nil {
		return nil, nil, err
	}

	resp, err := s.client.R().SetContext(ctx).Get("/info/collections")
	if err != nil {
		return nil, nil, fmt.Errorf("info/collections request: %w", err)
	}

	sr := s.inspect(resp)
	if err = mapStorageError(resp); err != nil {
		return nil, sr, err
	}

	var ic models.InfoCollections
	if err = json.Unmarshal(resp.Body(), &ic); err != nil {
		return nil, sr, fmt.Errorf("decode info/collections: %w", err)
	}
	return ic, sr, nil
}

// FetchMetaGlobal implements StorageClient. meta/global travels as a
// plaintext envelope whose payload string holds the MetaGlobal JSON.
func (s *storageClient) FetchMetaGlobal(ctx context.Context) (models.MetaGlobal, *ServerResponse, error) {
	env, sr, err := s.FetchRecord(ctx, "meta", "global")
	if err != nil {
		return models.MetaGlobal{}, sr, err
	}

	var global models.MetaGlobal
	if err = json.Unmarshal([]byte(env.Payload), &global); err != nil {
		return models.MetaGlobal{}, sr, fmt.Errorf("decode meta/global payload: %w", err)
	}
	return global, sr, nil
}

// UploadMetaGlobal implements StorageClient.
func (s *storageClient) UploadMetaGlobal(ctx context.Context, global models.MetaGlobal, ifUnmodifiedSince int64) (*ServerResponse, error) {
	payload, err := json.Marshal(global)
	if err != nil {
		return nil, fmt.Errorf("marshal meta/global: %w", err)
	}

	env := models.Envelope{GUID: "global", Collection: "meta", Payload: string(payload)}
	return s.UploadRecord(ctx, env, ifUnmodifiedSince)
}

// FetchRecord implements StorageClient.
func (s *storageClient) FetchRecord(ctx context.Context, collection, guid string) (models.Envelope, *ServerResponse, error) {
	if err := s.ready(); err != nil {
		return models.Envelope{}, nil, err
	}

	resp, err := s.client.R().SetContext(ctx).Get("/storage/" + collection + "/" + guid)
	if err != nil {
		return models.Envelope{}, nil, fmt.Errorf("fetch %s/%s request: %w", collection, guid, err)
	}

	sr := s.inspect(resp)
	if err = mapStorageError(resp); err != nil {
		return models.Envelope{}, sr, err
	}

	var env models.Envelope
	if err = json.Unmarshal(resp.Body(), &env); err != nil {
		return models.Envelope{}, sr, fmt.Errorf("decode %s/%s: %w", collection, guid, err)
	}
	if env.Collection == "" {
		env.Collection = collection
	}
	return env, sr, nil
}

// FetchCollection implements StorageClient.
func (s *storageClient) FetchCollection(ctx context.Context, collection string, newer int64) ([]models.Envelope, *ServerResponse, error) {
	if err := s.ready(); err != nil {
		return nil, nil, err
	}

	req := s.client.R().SetContext(ctx).SetQueryParam("full", "1")
	if newer > 0 {
		req.SetQueryParam("newer", millisToDecimalSeconds(newer))
	}

	resp, err := req.Get("/storage/" + collection)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch collection %s request: %w", collection, err)
	}

	sr := s.inspect(resp)
	if err = mapStorageError(resp); err != nil {
		return nil, sr, err
	}

	var envs []models.Envelope
	if err = json.Unmarshal(resp.Body(), &envs); err != nil {
		return nil, sr, fmt.Errorf("decode collection %s: %w", collection, err)
	}
	for i := range envs {
		if envs[i].Collection == "" {
			envs[i].Collection = collection
		}
	}
	return envs, sr, nil
}

// UploadRecord implements StorageClient.
func (s *storageClient) UploadRecord(ctx context.Context, env models.Envelope, ifUnmodifiedSince int64) (*ServerResponse, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	req := s.client.R().SetContext(ctx).SetBody(env)
	if ifUnmodifiedSince > 0 {
		req.SetHeader(headerIfUnmodifiedSince, millisToDecimalSeconds(ifUnmodifiedSince))
	}

	resp, err := req.Put("/storage/" + env.Collection + "/" + env.GUID)
	if err != nil {
		return nil, fmt.Errorf("upload %s/%s request: %w", env.Collection, env.GUID, err)
	}

	sr := s.inspect(resp)
	return sr, mapStorageError(resp)
}

// UploadRecords implements StorageClient.
func (s *storageClient) UploadRecords(ctx context.Context, collection string, envs []models.Envelope) (*ServerResponse, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(envs) == 0 {
		return nil, nil
	}

	resp, err := s.client.R().SetContext(ctx).SetBody(envs).Post("/storage/" + collection)
	if err != nil {
		return nil, fmt.Errorf("upload collection %s request: %w", collection, err)
	}

	sr := s.inspect(resp)
	return sr, mapStorageError(resp)
}

// DeleteRecord implements StorageClient.
func (s *storageClient) DeleteRecord(ctx context.Context, collection, guid string) (*ServerResponse, error) {
	return s.delete(ctx, "/storage/"+collection+"/"+guid)
}

// DeleteCollection implements StorageClient.
func (s *storageClient) DeleteCollection(ctx context.Context, collection string) (*ServerResponse, error) {
	return s.delete(ctx, "/storage/"+collection)
}

// DeleteAll implements StorageClient.
func (s *storageClient) DeleteAll(ctx context.Context) (*ServerResponse, error) {
	return s.delete(ctx, "/storage")
}

func (s *storageClient) delete(ctx context.Context, path string) (*ServerResponse, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	resp, err := s.client.R().SetContext(ctx).Delete(path)
	if err != nil {
		return nil, fmt.Errorf("delete %s request: %w", path, err)
	}

	sr := s.inspect(resp)
	return sr, mapStorageError(resp)
}

// inspect parses protocol headers and logs server alerts.
func (s *storageClient) inspect(resp *resty.Response) *ServerResponse {
	sr := parseServerResponse(resp)
	if sr.Alert != "" {
		s.log.Warn().Str("alert", sr.Alert).Msg("server alert")
	}
	return sr
}

// mapStorageError translates a non-2xx storage response into one of the
// package sentinels, or an *HTTPError when unclassified.
func mapStorageError(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	switch code {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusPreconditionFailed:
		return ErrConcurrentModification
	case http.StatusServiceUnavailable:
		return ErrServiceUnavailable
	case http.StatusBadRequest:
		if body == overQuotaCode {
			return ErrOverQuota
		}
	}

	if body == "" {
		body = http.StatusText(code)
	}
	return &HTTPError{StatusCode: code, Body: body}
}
