// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"encoding/json"
	"testing"
	"time"

	"silently-server/models"
	"silently-server/rabbitmq"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUsageMessage(t *testing.T) {
	ref := "pay_42"
	body, err := json.Marshal(rabbitmq.NewUsageMessage(models.UsageEvent{
		EID:           uuid.New(),
		AccountID:     7,
		EndpointLabel: "topup",
		CreditsDelta:  -500,
		Reference:     &ref,
		CreatedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, err)

	line, err := formatUsageMessage("usage.topup", body)
	require.NoError(t, err)
	assert.Contains(t, line, "2026-03-01T10:00:00Z")
	assert.Contains(t, line, "account=7")
	assert.Contains(t, line, "delta=-500")
	assert.Contains(t, line, "endpoint=topup")
	assert.Contains(t, line, "ref=pay_42")
}

func TestFormatUsageMessageRejectsGarbage(t *testing.T) {
	_, err := formatUsageMessage("usage.x", []byte("not json"))
	assert.Error(t, err)

	_, err = formatUsageMessage("usage.x", []byte(`{"endpoint":"x"}`))
	assert.Error(t, err)
}

func TestRootCmdFlags(t *testing.T) {
	t.Setenv("RABBITMQ_LEDGER_EXCHANGE", "")
	cmd := newRootCmd()

	binding, err := cmd.Flags().GetString("binding-key")
	require.NoError(t, err)
	assert.Equal(t, "usage.#", binding)

	exchange, err := cmd.Flags().GetString("exchange")
	require.NoError(t, err)
	assert.Equal(t, rabbitmq.DefaultExchange, exchange)

	queue, err := cmd.Flags().GetString("queue")
	require.NoError(t, err)
	assert.Empty(t, queue)
}
