// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

func init() {
	Register(ProviderMemory, func(_ context.Context, cfg Config) (Client, error) {
		return NewMemory(), nil
	})
}

// Op names a recorded Memory call.
type Op string

const (
	OpListMultipartUploads Op = "ListMultipartUploads"
	OpPutObject            Op = "PutObject"
	OpUploadPart           Op = "UploadPart"
	OpAbortMultipartUpload Op = "AbortMultipartUpload"
	OpListObjects          Op = "ListObjects"
	OpDeleteObject         Op = "DeleteObject"
)

// Call is one recorded request against Memory.
type Call struct {
	Op         Op
	Bucket     string
	Key        string
	UploadID   string
	PartNumber int
	Last       bool
}

type memUpload struct {
	bucket    string
	key       string
	initiated time.Time
	parts     map[int][]byte
}

type fault struct {
	op  Op
	key string
	err error
}

// Memory is an in-memory store for tests and dry wiring. It records every
// call and can be told to fail specific ones.
type Memory struct {
	mu      sync.Mutex
	objects map[string]map[string][]byte
	uploads map[string]*memUpload
	order   []string
	calls   []Call
	faults  []fault
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string]map[string][]byte),
		uploads: make(map[string]*memUpload),
	}
}

func (m *Memory) Provider() Provider {
	return ProviderMemory
}

// FailOn makes the next and all later calls of op on key return err. An
// empty key matches every key.
func (m *Memory) FailOn(op Op, key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = append(m.faults, fault{op: op, key: key, err: err})
}

// Calls returns a copy of the recorded calls in order.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times op was called.
func (m *Memory) CallCount(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// CreateMultipartUpload opens a session and returns its id.
func (m *Memory) CreateMultipartUpload(bucket, key string) string {
	id := uuid.NewString()
	m.AddUpload(bucket, Upload{Key: key, UploadID: id, Initiated: time.Now()})
	return id
}

// AddUpload registers a session with a caller-chosen id.
func (m *Memory) AddUpload(bucket string, u Upload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.uploads[u.UploadID]; !ok {
		m.order = append(m.order, u.UploadID)
	}
	m.uploads[u.UploadID] = &memUpload{
		bucket:    bucket,
		key:       u.Key,
		initiated: u.Initiated,
		parts:     make(map[int][]byte),
	}
}

// SetPart stores data as an already uploaded part of uploadID.
func (m *Memory) SetPart(uploadID string, partNumber int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[uploadID]
	if !ok {
		return ErrNoSuchUpload
	}
	u.parts[partNumber] = append([]byte(nil), data...)
	return nil
}

// HasUpload reports whether uploadID is still open.
func (m *Memory) HasUpload(uploadID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.uploads[uploadID]
	return ok
}

// Object returns a stored object's content.
func (m *Memory) Object(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket][key]
	return data, ok
}

// PutBytes stores an object directly without recording a call.
func (m *Memory) PutBytes(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(bucket, key, data)
}

func (m *Memory) putLocked(bucket, key string, data []byte) {
	b, ok := m.objects[bucket]
	if !ok {
		b = make(map[string][]byte)
		m.objects[bucket] = b
	}
	b[key] = data
}

// record appends a call and returns the first matching injected fault.
func (m *Memory) record(c Call) error {
	m.calls = append(m.calls, c)
	for _, f := range m.faults {
		if f.op == c.Op && (f.key == "" || f.key == c.Key) {
			return f.err
		}
	}
	return nil
}

func (m *Memory) ListMultipartUploads(ctx context.Context, bucket string) ([]Upload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Op: OpListMultipartUploads, Bucket: bucket}); err != nil {
		return nil, err
	}

	var uploads []Upload
	for _, id := range m.order {
		u, ok := m.uploads[id]
		if !ok || u.bucket != bucket {
			continue
		}
		uploads = append(uploads, Upload{Key: u.key, UploadID: id, Initiated: u.initiated})
	}
	return uploads, nil
}

func (m *Memory) PutObject(ctx context.Context, bucket, key, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Op: OpPutObject, Bucket: bucket, Key: key}); err != nil {
		return err
	}
	m.putLocked(bucket, key, data)
	return nil
}

func (m *Memory) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, path string, last bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{
		Op:         OpUploadPart,
		Bucket:     bucket,
		Key:        key,
		UploadID:   uploadID,
		PartNumber: partNumber,
		Last:       last,
	}); err != nil {
		return err
	}

	u, ok := m.uploads[uploadID]
	if !ok || u.bucket != bucket || u.key != key {
		return fmt.Errorf("upload part %d: %w", partNumber, ErrNoSuchUpload)
	}
	u.parts[partNumber] = data

	if last {
		m.completeLocked(uploadID, u)
	}
	return nil
}

func (m *Memory) completeLocked(uploadID string, u *memUpload) {
	numbers := make([]int, 0, len(u.parts))
	for n := range u.parts {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	var buf bytes.Buffer
	for _, n := range numbers {
		buf.Write(u.parts[n])
	}
	m.putLocked(u.bucket, u.key, buf.Bytes())
	m.dropLocked(uploadID)
}

func (m *Memory) dropLocked(uploadID string) {
	delete(m.uploads, uploadID)
	for i, id := range m.order {
		if id == uploadID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Memory) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Op: OpAbortMultipartUpload, Bucket: bucket, Key: key, UploadID: uploadID}); err != nil {
		return err
	}
	m.dropLocked(uploadID)
	return nil
}

func (m *Memory) ListObjects(ctx context.Context, bucket, prefix string, fn func(key string) error) error {
	m.mu.Lock()
	if err := m.record(Call{Op: OpListObjects, Bucket: bucket, Key: prefix}); err != nil {
		m.mu.Unlock()
		return err
	}
	var keys []string
	for k := range m.objects[bucket] {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	m.mu.Unlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(Call{Op: OpDeleteObject, Bucket: bucket, Key: key}); err != nil {
		return err
	}
	delete(m.objects[bucket], key)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
