// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weavesync/weavesync/internal/crypto"
	"github.com/weavesync/weavesync/models"
)

const clientsCollection = "clients"

// syncClientsStage keeps this device's record in the clients collection
// current. Other devices' records are decrypted for visibility; our own is
// re-uploaded when missing or stale.
type syncClientsStage struct{}

func (syncClientsStage) Name() string { return "syncClients" }

func (syncClientsStage) Execute(ctx context.Context, s *Session) error {
	bundle := s.keys.BundleFor(clientsCollection)

	envs, resp, err := s.storage.FetchCollection(ctx, clientsCollection, 0)
	if err = s.finishCall(resp, err); err != nil {
		return fmt.Errorf("fetch clients: %w", err)
	}

	current := false
	others := 0
	for _, env := range envs {
		cleartext, decErr := crypto.DecryptEnvelope(env, bundle)
		if decErr != nil {
			s.stats.ParseFailures++
			s.log.Warn().Err(decErr).Str("guid", env.GUID).Msg("undecryptable client record")
			continue
		}

		if env.GUID != s.cfg.DeviceGUID {
			others++
			continue
		}

		var remote models.ClientRecord
		if jsonErr := json.Unmarshal(cleartext, &remote); jsonErr == nil {
			current = remote.Name == s.cfg.Client.Name && remote.Type == s.cfg.Client.Type
		}
	}
	s.log.Debug().Int("other_clients", others).Msg("clients collection read")

	if current {
		return nil
	}

	cleartext, err := json.Marshal(struct {
		ID string `json:"id"`
		models.ClientRecord
	}{ID: s.cfg.DeviceGUID, ClientRecord: s.cfg.Client})
	if err != nil {
		return fmt.Errorf("encode client record: %w", err)
	}

	env, err := crypto.EncryptEnvelope(s.cfg.DeviceGUID, clientsCollection, cleartext, bundle)
	if err != nil {
		return fmt.Errorf("encrypt client record: %w", err)
	}
	resp, err = s.storage.UploadRecord(ctx, env, 0)
	if err = s.finishCall(resp, err); err != nil {
		return fmt.Errorf("upload client record: %w", err)
	}

	s.log.Debug().Str("guid", s.cfg.DeviceGUID).Msg("client record uploaded")
	return nil
}
