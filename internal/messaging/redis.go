package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/redis/go-redis/v9"

	"uav-control-manager/internal/command"
	"uav-control-manager/internal/logger"
	"uav-control-manager/internal/types"
)

const (
	// commandPrefix prefixes the command lists, one per operation.
	commandPrefix = "control-manager:"
	// statusHash holds the latest status and the last command response.
	statusHash = "control-manager"
	// statusChannel carries a notification for every hash update.
	statusChannel = "control-manager"
	// bumperChannel carries bumper snapshots as JSON.
	bumperChannel = "bumper"
	// eventStream mirrors the flight journal.
	eventStream = "events:control-manager"
)

// BumperSink receives decoded bumper snapshots.
type BumperSink interface {
	Update(snap types.BumperSnapshot)
}

type RedisClient struct {
	client  *redis.Client
	surface command.Surface
	bumper  BumperSink
	logger  *logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewRedisClient(host string, port, db int, l *logger.Logger, surface command.Surface, bumper BumperSink) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", host, port),
			DB:   db,
		}),
		surface: surface,
		bumper:  bumper,
		logger:  l,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetSurface attaches the command surface. Call it before StartListening.
func (r *RedisClient) SetSurface(surface command.Surface) {
	r.surface = surface
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		r.logger.Errorf("Redis connection failed: %v", err)
		return fmt.Errorf("redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// StartListening starts the command list listener and, when a bumper sink
// is set, the bumper channel listener.
func (r *RedisClient) StartListening() error {
	r.logger.Infof("Starting Redis listeners")

	if r.bumper != nil {
		pubsub := r.client.Subscribe(r.ctx, bumperChannel)
		r.logger.Infof("Subscribed to Redis channel %s", bumperChannel)
		r.wg.Add(1)
		go r.redisListener(pubsub)
	}

	ops := command.Operations()
	keys := make([]string, len(ops))
	for i, op := range ops {
		keys[i] = commandPrefix + op
	}
	r.wg.Add(1)
	go r.listCommandListener(keys)

	return nil
}

func (r *RedisClient) listCommandListener(keys []string) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %d lists", len(keys))

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting command listener")
			return
		default:
			// BRPOP with a short timeout to allow periodic context cancellation checks
			result, err := r.client.BRPop(r.ctx, 5*time.Second, keys...).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if errors.Is(err, context.Canceled) {
					r.logger.Infof("Context cancelled, exiting command listener")
					return
				}
				r.logger.Warnf("Error reading command lists: %v", err)
				time.Sleep(time.Second)
				continue
			}

			if len(result) >= 2 { // BRPOP returns [key, value]
				key, value := result[0], result[1]
				r.logger.Debugf("Received command from %s: %s", key, value)
				if err := r.handleCommand(key, value); err != nil {
					r.logger.Warnf("Error handling %s command: %v", key, err)
				}
			}
		}
	}
}

// handleCommand runs one command and stores its response.
func (r *RedisClient) handleCommand(key, value string) error {
	op := strings.TrimPrefix(key, commandPrefix)

	out, err := command.Dispatch(r.surface, op, []byte(value))
	if err != nil {
		out = types.Fail("%v", err)
	}
	payload, merr := json.Marshal(out)
	if merr != nil {
		return fmt.Errorf("failed to encode %s response: %w", op, merr)
	}
	if perr := r.publishHashSet(statusHash, "last-response", string(payload), statusChannel, "response:"+op); perr != nil {
		return perr
	}
	return err
}

func (r *RedisClient) redisListener(pubsub *redis.PubSub) {
	defer r.wg.Done()
	defer pubsub.Close()

	r.logger.Infof("Starting Redis message listener")
	channel := pubsub.Channel()

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting listener")
			return
		case msg, ok := <-channel:
			if !ok || msg == nil {
				r.logger.Errorf("Redis channel closed unexpectedly")
				r.logger.Fatalf("Redis connection lost, exiting to allow systemd restart")
			}

			if msg.Channel != bumperChannel {
				continue
			}
			snap, err := decodeBumper(msg.Payload)
			if err != nil {
				r.logger.ThrottledWarnf(time.Second, "Dropping bumper message: %v", err)
				continue
			}
			r.bumper.Update(snap)
		}
	}
}

func decodeBumper(payload string) (types.BumperSnapshot, error) {
	var snap types.BumperSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return snap, fmt.Errorf("invalid bumper snapshot: %w", err)
	}
	if len(snap.Horizontal) == 0 {
		return snap, fmt.Errorf("invalid bumper snapshot: no horizontal sectors")
	}
	return snap, nil
}

// publishHashSet is a helper that atomically updates a hash field and publishes a notification
func (r *RedisClient) publishHashSet(hash, field string, value interface{}, channel, payload string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, hash, field, value)
	pipe.Publish(r.ctx, channel, payload)
	_, err := pipe.Exec(r.ctx)
	return err
}

// statusFields flattens a status snapshot into hash fields.
func statusFields(st types.Status) map[string]interface{} {
	age := "never"
	if st.HaveState {
		age = humanize.RelTime(st.Stamp.Add(-st.StateAge), st.Stamp, "ago", "from now")
	}
	return map[string]interface{}{
		"uav":                st.UAV,
		"active-tracker":     st.ActiveTracker,
		"active-controller":  st.ActiveController,
		"landing":            string(st.Landing),
		"escalation":         string(st.Escalation),
		"motors":             onOff(st.MotorsOn),
		"armed":              fmt.Sprintf("%t", st.Armed),
		"offboard":           fmt.Sprintf("%t", st.Offboard),
		"eland-triggered":    fmt.Sprintf("%t", st.ElandTriggered),
		"failsafe-triggered": fmt.Sprintf("%t", st.FailsafeTriggered),
		"failsafe-active":    fmt.Sprintf("%t", st.FailsafeActive),
		"bumper-engaged":     fmt.Sprintf("%t", st.BumperEngaged),
		"state-age":          age,
		"timestamp":          st.Stamp.Unix(),
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// PublishStatus writes the status hash and notifies subscribers.
func (r *RedisClient) PublishStatus(st types.Status) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, statusHash, statusFields(st))
	pipe.Publish(r.ctx, statusChannel, "status")
	if _, err := pipe.Exec(r.ctx); err != nil {
		r.logger.ThrottledWarnf(5*time.Second, "Failed to publish status: %v", err)
		return err
	}
	return nil
}

// ReportEvent mirrors a journal entry into the event stream.
func (r *RedisClient) ReportEvent(ev types.Event) error {
	pipe := r.client.Pipeline()
	pipe.XAdd(r.ctx, &redis.XAddArgs{
		Stream: eventStream,
		MaxLen: 1000,
		Values: map[string]interface{}{
			"kind":       string(ev.Kind),
			"message":    ev.Message,
			"tracker":    ev.Tracker,
			"controller": ev.Controller,
			"ts":         ev.Stamp.UnixMilli(),
		},
	})
	pipe.Publish(r.ctx, statusChannel, "event:"+string(ev.Kind))
	_, err := pipe.Exec(r.ctx)
	return err
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	// Wait for all goroutines to finish with a timeout
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(5 * time.Second):
		r.logger.Warnf("Timeout waiting for Redis goroutines to finish")
	}

	return r.client.Close()
}
