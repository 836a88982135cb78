package cron

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"cabgo/config"
	callsRepo "cabgo/database/repository/calls"
	"cabgo/models"
	"cabgo/services/session"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
)

const TypeCallRecordPersist = "callrecord:persist"

// CallRecordQueue enqueues finished calls for off-path persistence. It
// satisfies the voice bridge's RecordSink.
type CallRecordQueue struct {
	client *asynq.Client
}

// NewCallRecordQueue connects an enqueue client to the task queue.
func NewCallRecordQueue() *CallRecordQueue {
	return &CallRecordQueue{client: asynq.NewClient(queueRedisOpts())}
}

// EnqueueCallRecord schedules one record write.
func (q *CallRecordQueue) EnqueueCallRecord(record *models.CallRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeCallRecordPersist, payload)
	_, err = q.client.Enqueue(task, asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
	return err
}

// Close releases the enqueue client.
func (q *CallRecordQueue) Close() error {
	return q.client.Close()
}

func queueRedisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// InitCallRecordWorker runs the async worker in background.
func InitCallRecordWorker(repo callsRepo.CallRecordRepository, store session.Store) {
	srv := asynq.NewServer(
		queueRedisOpts(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeCallRecordPersist, handleCallRecordTask(repo))

	// Start Redis health monitor
	go monitorRedisConnection()

	// Periodic sweep keeps the active-session gauge honest.
	go sweepSessions(store)

	// Start async worker with retry logic
	go func() {
		log.Println("[CallRecordWorker] Starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[CallRecordWorker] Attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[CallRecordWorker] Max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()
}

func handleCallRecordTask(repo callsRepo.CallRecordRepository) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var record models.CallRecord
		if err := json.Unmarshal(task.Payload(), &record); err != nil {
			log.Printf("[CallRecordHandler] Invalid payload: %v", err)
			return err
		}

		id, err := repo.Create(ctx, record)
		if err != nil {
			log.Printf("[CallRecordHandler] Failed to persist call %s: %v", record.SessionID, err)
			return err
		}
		log.Printf("[CallRecordHandler] Persisted call %s as record %s (final step %s)",
			record.SessionID, id, record.FinalStep)
		return nil
	}
}

// sweepSessions logs the live session count and surfaces sessions that
// somehow outlived their calls.
func sweepSessions(store session.Store) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		active, err := store.ListActive(ctx, nil)
		cancel()
		if err != nil {
			log.Printf("[SessionSweep] Failed to list sessions: %v", err)
			continue
		}
		stale := 0
		for _, sess := range active {
			if time.Since(sess.LastActivityAt) > 10*time.Minute {
				stale++
			}
		}
		log.Printf("[SessionSweep] %d active sessions, %d stale", len(active), stale)
	}
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func monitorRedisConnection() {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})

	ctx := context.Background()

	for {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[CallRecordWorker] Redis connection lost: %v", err)
		}
		time.Sleep(10 * time.Second)
	}
}
