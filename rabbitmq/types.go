// SPDX-License-Identifier: GPL-3.0-only

package rabbitmq

import (
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "ledger.events"
	ExchangeType    = "topic"
)

const (
	defaultDialTimeout = 2 * time.Second
	minReconnectDelay  = time.Second
	maxReconnectDelay  = time.Minute
)

type RabbitMQConfig struct {
	AMQPURL     string
	Exchange    string
	DialTimeout time.Duration
}

// Publisher fans committed usage events out to a topic exchange.
type Publisher struct {
	AMQPURL     *url.URL
	Exchange    string
	DialTimeout time.Duration

	mu          sync.Mutex
	AMQPConn    *amqp.Connection
	AMQPChannel *amqp.Channel

	dial           func() (*amqp.Connection, error)
	now            func() time.Time
	reconnectDelay time.Duration
	nextReconnect  time.Time
}

// UsageMessage is the JSON body of every message on the ledger exchange.
type UsageMessage struct {
	EventID      string    `json:"event_id"`
	AccountID    uint      `json:"account_id"`
	Endpoint     string    `json:"endpoint"`
	CreditsDelta int64     `json:"credits_delta"`
	Reference    *string   `json:"reference,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
