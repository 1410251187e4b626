package crmsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

type recordingQueue struct {
	mu      sync.Mutex
	deleted []string
	*MemoryQueue
}

func (q *recordingQueue) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, receiptHandle)
	return nil
}

func (q *recordingQueue) deletedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.deleted)
}

func TestQueueDispatcherAndWorker(t *testing.T) {
	queue := &recordingQueue{MemoryQueue: NewMemoryQueue(4)}
	syncer := &fakeSyncer{extID: "crm-7"}
	marker := &fakeMarker{}
	processor := NewProcessor(syncer, marker)

	if err := NewQueueDispatcher(queue).Dispatch(context.Background(), testJob("q1")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if queue.Len() != 1 {
		t.Fatalf("expected one queued job, got %d", queue.Len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(processor, queue, logging.Default(), WithWorkerCount(1), WithReceiveWaitSeconds(1))
	w.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for queue.deletedCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	w.Wait()

	if ext, ok := marker.get("q1"); !ok || ext != "crm-7" {
		t.Fatalf("expected session marked with crm-7, got %q %v", ext, ok)
	}
	if queue.deletedCount() != 1 {
		t.Fatalf("expected the message to be deleted once, got %d", queue.deletedCount())
	}
}

func TestWorkerHandleMessage_DeletionRules(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		syncErr    error
		wantDelete bool
	}{
		{name: "undecodable", body: "{", wantDelete: true},
		{name: "missing session", body: `{"id":"j1"}`, wantDelete: true},
		{name: "transient failure", body: `{"id":"j2","session_id":"s"}`, syncErr: errors.New("timeout"), wantDelete: false},
		{name: "permanent failure", body: `{"id":"j3","session_id":"s"}`, syncErr: &StatusError{StatusCode: 422}, wantDelete: true},
		{name: "success", body: `{"id":"j4","session_id":"s"}`, wantDelete: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			queue := &recordingQueue{MemoryQueue: NewMemoryQueue(1)}
			w := NewWorker(NewProcessor(&fakeSyncer{err: tc.syncErr}, &fakeMarker{}), queue, nil)
			w.handleMessage(context.Background(), queueMessage{ID: "m", Body: tc.body, ReceiptHandle: "rh"})
			if got := queue.deletedCount() == 1; got != tc.wantDelete {
				t.Fatalf("deleted = %v, want %v", got, tc.wantDelete)
			}
		})
	}
}

func TestWorkerSyncsSessionOnce(t *testing.T) {
	queue := &recordingQueue{MemoryQueue: NewMemoryQueue(4)}
	syncer := &fakeSyncer{extID: "crm-9", delay: 20 * time.Millisecond}
	marker := &fakeMarker{}
	dispatcher := NewQueueDispatcher(queue)

	for i := 0; i < 2; i++ {
		if err := dispatcher.Dispatch(context.Background(), testJob("same")); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(NewProcessor(syncer, marker), queue, nil, WithWorkerCount(2), WithReceiveBatchSize(1), WithReceiveWaitSeconds(1))
	w.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for queue.deletedCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	w.Wait()

	if queue.deletedCount() != 2 {
		t.Fatalf("expected both jobs deleted, got %d", queue.deletedCount())
	}
	if got := syncer.calls.Load(); got != 1 {
		t.Fatalf("expected one crm call for the session, got %d", got)
	}
}

func TestWorkerLeavesJobWhileSessionLocked(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	locker := NewRedisLocker(client)

	_, ok, err := locker.TryLock(context.Background(), "s-locked", time.Minute)
	if err != nil || !ok {
		t.Fatalf("pre-lock: ok=%v err=%v", ok, err)
	}

	queue := &recordingQueue{MemoryQueue: NewMemoryQueue(1)}
	syncer := &fakeSyncer{}
	w := NewWorker(NewProcessor(syncer, &fakeMarker{}), queue, nil, WithWorkerLocker(locker))
	w.handleMessage(context.Background(), queueMessage{ID: "m", Body: `{"id":"j1","session_id":"s-locked"}`, ReceiptHandle: "rh"})

	if queue.deletedCount() != 0 {
		t.Fatalf("expected the job to stay queued")
	}
	if syncer.calls.Load() != 0 {
		t.Fatalf("expected no crm call while locked")
	}

	mr.FlushAll()
	w.handleMessage(context.Background(), queueMessage{ID: "m", Body: `{"id":"j1","session_id":"s-locked"}`, ReceiptHandle: "rh"})
	if queue.deletedCount() != 1 || syncer.calls.Load() != 1 {
		t.Fatalf("expected the job to sync once the lock is free: deleted=%d calls=%d", queue.deletedCount(), syncer.calls.Load())
	}
}

type fakeSQS struct {
	sent     []string
	deleted  []string
	received *sqs.ReceiveMessageOutput
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return f.received, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueue(t *testing.T) {
	api := &fakeSQS{received: &sqs.ReceiveMessageOutput{Messages: []sqstypes.Message{{
		MessageId:     aws.String("m1"),
		Body:          aws.String(`{"session_id":"s"}`),
		ReceiptHandle: aws.String("rh-1"),
	}}}}
	q := NewSQSQueue(api, "https://sqs.local/queue")
	ctx := context.Background()

	if err := q.Send(ctx, "payload"); err != nil {
		t.Fatalf("send: %v", err)
	}
	msgs, err := q.Receive(ctx, 5, 1)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ReceiptHandle != "rh-1" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if err := q.Delete(ctx, ""); err != nil {
		t.Fatalf("delete blank: %v", err)
	}
	if err := q.Delete(ctx, "rh-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(api.sent) != 1 || len(api.deleted) != 1 {
		t.Fatalf("unexpected calls: sent=%v deleted=%v", api.sent, api.deleted)
	}
}
