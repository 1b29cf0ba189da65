// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"time"
)

// ensureClusterURLStage resolves the account's storage node. Node credentials
// cached from a previous run are reused while the token server's validity
// window lasts; otherwise the identity assertion is exchanged for fresh ones.
type ensureClusterURLStage struct{}

func (ensureClusterURLStage) Name() string { return "ensureClusterURL" }

func (ensureClusterURLStage) Execute(ctx context.Context, s *Session) error {
	now := time.Now().UnixMilli()

	if !s.state.HasValidNode(now) {
		token, err := s.tokens.Exchange(ctx, s.cfg.Assertion)
		if err != nil {
			return fmt.Errorf("token exchange: %w", err)
		}

		s.state.SetNode(token.Endpoint, token.ID, token.Key, now+token.Duration*1000)
		if err = s.state.Save(); err != nil {
			return err
		}
		s.log.Debug().Str("endpoint", token.Endpoint).Msg("storage node resolved")
	}

	s.storage.Configure(s.state.ClusterURL, s.state.NodeUsername, s.state.NodePassword)
	return nil
}
