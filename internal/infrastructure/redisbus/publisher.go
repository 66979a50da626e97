// Package redisbus reenvía los eventos del bus a canales Redis pub/sub, uno por
// categoría de suscriptor (<prefijo>.<categoría>).
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/tagtrack-api/internal/application/events"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
	"github.com/jhoicas/tagtrack-api/pkg/config"
)

// Connect abre el cliente y hace ping. Si Redis no responde el cliente se cierra y se
// devuelve el error para que el arranque siga sin este destino.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Envelope mensaje publicado en Redis.
type Envelope struct {
	Category events.Category `json:"category"`
	Event    entity.Event    `json:"event"`
}

// Publisher publica eventos serializados en JSON.
type Publisher struct {
	client redis.UniversalClient
	prefix string
}

// NewPublisher construye el destino. prefix vacío = "tagtrack".
func NewPublisher(client redis.UniversalClient, prefix string) *Publisher {
	if prefix == "" {
		prefix = "tagtrack"
	}
	return &Publisher{client: client, prefix: prefix}
}

// Channel nombre del canal de una categoría.
func (p *Publisher) Channel(category events.Category) string {
	return p.prefix + "." + string(category)
}

// Handler suscriptor del bus para una categoría. Los errores de Redis se devuelven
// al bus, que solo los registra.
func (p *Publisher) Handler(category events.Category) events.Handler {
	channel := p.Channel(category)
	return func(ctx context.Context, evt entity.Event) error {
		payload, err := Encode(category, evt)
		if err != nil {
			return err
		}
		if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
			return fmt.Errorf("redis publish %s: %w", channel, err)
		}
		return nil
	}
}

// Register suscribe el destino a todas las categorías del bus.
func (p *Publisher) Register(bus *events.Bus) error {
	for _, c := range events.Categories {
		if err := bus.Subscribe(c, "redis:"+p.Channel(c), p.Handler(c)); err != nil {
			return err
		}
	}
	return nil
}

// Encode serializa el sobre.
func Encode(category events.Category, evt entity.Event) ([]byte, error) {
	b, err := json.Marshal(Envelope{Category: category, Event: evt})
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", evt.ID, err)
	}
	return b, nil
}
