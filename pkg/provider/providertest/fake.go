// Package providertest provides in-memory provider implementations for
// tests. The fakes honor the provider package error contracts (sentinel
// errors wrapped in ProviderError) so error-path tests exercise the same
// classification logic as production code.
package providertest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/3leaps/weblift/pkg/provider"
)

// Object is a stored fake object.
type Object struct {
	Data        []byte
	ETag        string
	ContentType string
}

// Bucket is a fake bucket with its website state.
type Bucket struct {
	Region   string
	IndexDoc string
	ErrorDoc string
	Policy   string
	Objects  map[string]Object
}

// Storage is an in-memory provider.Storage.
//
// Error injection: set PutErrs/DeleteErr/ListErr to force failures.
// PutErrs is consumed per key: each call pops one error, so a key can fail
// transiently and then succeed on retry.
type Storage struct {
	mu      sync.Mutex
	buckets map[string]*Bucket

	// ForeignBuckets simulates names taken by other accounts.
	ForeignBuckets map[string]bool

	// PutErrs maps keys to a queue of errors returned by PutObject.
	PutErrs map[string][]error

	// DeleteErr is returned by every DeleteObject when set.
	DeleteErr error

	// ListErr is returned by every List when set.
	ListErr error

	// PutCalls counts PutObject attempts per key, including failed ones.
	PutCalls map[string]int
}

var (
	_ provider.Storage           = (*Storage)(nil)
	_ provider.MultipartUploader = (*Storage)(nil)
)

// NewStorage creates an empty fake storage.
func NewStorage() *Storage {
	return &Storage{
		buckets:        make(map[string]*Bucket),
		ForeignBuckets: make(map[string]bool),
		PutErrs:        make(map[string][]error),
		PutCalls:       make(map[string]int),
	}
}

// AddBucket creates a bucket and returns it for direct seeding.
func (s *Storage) AddBucket(name, region string) *Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &Bucket{Region: region, Objects: make(map[string]Object)}
	s.buckets[name] = b
	return b
}

// Bucket returns the named bucket or nil.
func (s *Storage) Bucket(name string) *Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buckets[name]
}

// Seed stores an object with the ETag computed from its content.
func (s *Storage) Seed(bucket, key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.buckets[bucket]
	sum := md5.Sum(data)
	b.Objects[key] = Object{Data: data, ETag: hex.EncodeToString(sum[:])}
}

// SeedETag stores an object with an explicit ETag (e.g. a multipart tag).
func (s *Storage) SeedETag(bucket, key, etag string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[bucket].Objects[key] = Object{Data: data, ETag: etag}
}

func (s *Storage) BucketExists(ctx context.Context, bucket string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForeignBuckets[bucket] {
		return false, &provider.ProviderError{
			Op: "HeadBucket", Service: provider.ServiceS3, Bucket: bucket,
			Err: provider.ErrBucketConflict,
		}
	}
	_, ok := s.buckets[bucket]
	return ok, nil
}

func (s *Storage) CreateBucket(ctx context.Context, bucket, region string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ForeignBuckets[bucket] {
		return &provider.ProviderError{
			Op: "CreateBucket", Service: provider.ServiceS3, Bucket: bucket,
			Err: provider.ErrBucketConflict,
		}
	}
	if _, ok := s.buckets[bucket]; ok {
		return nil
	}
	s.buckets[bucket] = &Bucket{Region: region, Objects: make(map[string]Object)}
	return nil
}

func (s *Storage) ConfigureWebsite(ctx context.Context, bucket, indexDoc, errorDoc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucket]
	if !ok {
		return s.bucketNotFound("PutBucketWebsite", bucket)
	}
	b.IndexDoc, b.ErrorDoc = indexDoc, errorDoc
	return nil
}

func (s *Storage) SetBucketPolicy(ctx context.Context, bucket, policy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucket]
	if !ok {
		return s.bucketNotFound("PutBucketPolicy", bucket)
	}
	b.Policy = policy
	return nil
}

func (s *Storage) ListBuckets(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		names = append(names, name)
	}
	return names, nil
}

func (s *Storage) List(ctx context.Context, bucket string, opts provider.ListOptions) (*provider.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ListErr != nil {
		return nil, s.ListErr
	}

	b, ok := s.buckets[bucket]
	if !ok {
		return nil, s.bucketNotFound("List", bucket)
	}

	// Sorted page-by-one listing exercises real pagination paths.
	keys := make([]string, 0, len(b.Objects))
	for k := range b.Objects {
		if opts.Prefix == "" || strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if opts.ContinuationToken != "" {
		for i, k := range keys {
			if k > opts.ContinuationToken {
				start = i
				break
			}
			start = i + 1
		}
	}

	pageSize := opts.MaxKeys
	if pageSize <= 0 {
		pageSize = 2 // small default page keeps pagination honest in tests
	}
	end := start + pageSize
	if end > len(keys) {
		end = len(keys)
	}

	res := &provider.ListResult{}
	for _, k := range keys[start:end] {
		obj := b.Objects[k]
		res.Objects = append(res.Objects, provider.ObjectSummary{
			Key: k, Size: int64(len(obj.Data)), ETag: obj.ETag,
		})
	}
	if end < len(keys) {
		res.IsTruncated = true
		res.ContinuationToken = keys[end-1]
	}
	return res, nil
}

func (s *Storage) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	s.mu.Lock()
	s.PutCalls[key]++
	if errs := s.PutErrs[key]; len(errs) > 0 {
		err := errs[0]
		s.PutErrs[key] = errs[1:]
		s.mu.Unlock()
		return err
	}
	if _, ok := s.buckets[bucket]; !ok {
		s.mu.Unlock()
		return s.bucketNotFound("PutObject", bucket)
	}
	s.mu.Unlock()

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	sum := md5.Sum(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-resolve: the bucket may have been deleted or recreated while
	// the body was read outside the lock, and writing through a stale
	// pointer would resurrect the old object map.
	b, ok := s.buckets[bucket]
	if !ok {
		return s.bucketNotFound("PutObject", bucket)
	}
	b.Objects[key] = Object{
		Data:        data,
		ETag:        hex.EncodeToString(sum[:]),
		ContentType: contentType,
	}
	return nil
}

// PutObjectMultipart stores an object with the multipart composite ETag
// for the given part size, the same form S3 assigns to chunked uploads.
// Error injection and call counting share PutErrs and PutCalls with
// PutObject.
func (s *Storage) PutObjectMultipart(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string, partSize int64) error {
	s.mu.Lock()
	s.PutCalls[key]++
	if errs := s.PutErrs[key]; len(errs) > 0 {
		err := errs[0]
		s.PutErrs[key] = errs[1:]
		s.mu.Unlock()
		return err
	}
	if _, ok := s.buckets[bucket]; !ok {
		s.mu.Unlock()
		return s.bucketNotFound("CreateMultipartUpload", bucket)
	}
	s.mu.Unlock()

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	h := md5.New()
	parts := 0
	for off := 0; off < len(data); off += int(partSize) {
		end := off + int(partSize)
		if end > len(data) {
			end = len(data)
		}
		sum := md5.Sum(data[off:end])
		h.Write(sum[:])
		parts++
	}
	etag := fmt.Sprintf("%s-%d", hex.EncodeToString(h.Sum(nil)), parts)

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucket]
	if !ok {
		return s.bucketNotFound("CompleteMultipartUpload", bucket)
	}
	b.Objects[key] = Object{Data: data, ETag: etag, ContentType: contentType}
	return nil
}

func (s *Storage) DeleteObject(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	b, ok := s.buckets[bucket]
	if !ok {
		return s.bucketNotFound("DeleteObject", bucket)
	}
	delete(b.Objects, key)
	return nil
}

func (s *Storage) Close() error { return nil }

func (s *Storage) bucketNotFound(op, bucket string) error {
	return &provider.ProviderError{
		Op: op, Service: provider.ServiceS3, Bucket: bucket,
		Err: provider.ErrBucketNotFound,
	}
}

// DNS is an in-memory provider.DNS.
type DNS struct {
	mu    sync.Mutex
	zones map[string]*FakeZone

	// CreateZoneErr is returned by CreateZone when set.
	CreateZoneErr error

	// UpsertCalls records every record change in order.
	UpsertCalls []string
}

// FakeZone holds the records of one fake hosted zone.
type FakeZone struct {
	ID      string
	Name    string
	Records map[string]provider.Record      // keyed by name|type
	Aliases map[string]provider.AliasTarget // keyed by name
}

var _ provider.DNS = (*DNS)(nil)

// NewDNS creates an empty fake DNS service.
func NewDNS() *DNS {
	return &DNS{zones: make(map[string]*FakeZone)}
}

// AddZone seeds a hosted zone.
func (d *DNS) AddZone(id, name string) *FakeZone {
	d.mu.Lock()
	defer d.mu.Unlock()
	z := &FakeZone{
		ID: id, Name: name,
		Records: make(map[string]provider.Record),
		Aliases: make(map[string]provider.AliasTarget),
	}
	d.zones[id] = z
	return z
}

// Zone returns the zone with the given ID, or nil.
func (d *DNS) Zone(id string) *FakeZone {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.zones[id]
}

func (d *DNS) FindZone(ctx context.Context, domain string) (*provider.Zone, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, z := range d.zones {
		if domain == z.Name || strings.HasSuffix(domain, "."+z.Name) {
			return &provider.Zone{ID: z.ID, Name: z.Name}, nil
		}
	}
	return nil, &provider.ProviderError{
		Op: "FindZone", Service: provider.ServiceRoute53, Key: domain,
		Err: provider.ErrNotFound,
	}
}

func (d *DNS) CreateZone(ctx context.Context, domain string) (*provider.Zone, error) {
	if d.CreateZoneErr != nil {
		return nil, d.CreateZoneErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	id := "Z" + strings.ToUpper(strings.ReplaceAll(domain, ".", ""))
	z := &FakeZone{
		ID: id, Name: domain,
		Records: make(map[string]provider.Record),
		Aliases: make(map[string]provider.AliasTarget),
	}
	d.zones[id] = z
	return &provider.Zone{ID: id, Name: domain}, nil
}

func (d *DNS) UpsertRecord(ctx context.Context, zoneID string, rec provider.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	z, ok := d.zones[zoneID]
	if !ok {
		return &provider.ProviderError{
			Op: "UpsertRecord", Service: provider.ServiceRoute53, Key: zoneID,
			Err: provider.ErrNotFound,
		}
	}
	z.Records[rec.Name+"|"+rec.Type] = rec
	d.UpsertCalls = append(d.UpsertCalls, rec.Name+"|"+rec.Type)
	return nil
}

func (d *DNS) UpsertAlias(ctx context.Context, zoneID, name string, target provider.AliasTarget) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	z, ok := d.zones[zoneID]
	if !ok {
		return &provider.ProviderError{
			Op: "UpsertAlias", Service: provider.ServiceRoute53, Key: zoneID,
			Err: provider.ErrNotFound,
		}
	}
	z.Aliases[name] = target
	d.UpsertCalls = append(d.UpsertCalls, name+"|A-alias")
	return nil
}

// CDN is an in-memory provider.CDN.
type CDN struct {
	mu    sync.Mutex
	dists map[string]provider.Distribution // keyed by alias domain

	// CreateErr is returned by CreateDistribution when set.
	CreateErr error

	// Created records the domains passed to CreateDistribution.
	Created []string
}

var _ provider.CDN = (*CDN)(nil)

// NewCDN creates an empty fake CDN service.
func NewCDN() *CDN {
	return &CDN{dists: make(map[string]provider.Distribution)}
}

// AddDistribution seeds an existing distribution for domain.
func (c *CDN) AddDistribution(domain, id, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dists[domain] = provider.Distribution{
		ID: id, DomainName: id + ".cloudfront.net", Status: status,
	}
}

func (c *CDN) FindDistribution(ctx context.Context, domain string) (*provider.Distribution, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dist, ok := c.dists[domain]; ok {
		return &dist, nil
	}
	return nil, &provider.ProviderError{
		Op: "FindDistribution", Service: provider.ServiceCloudFront, Key: domain,
		Err: provider.ErrNotFound,
	}
}

func (c *CDN) CreateDistribution(ctx context.Context, domain, certificateARN, rootObject string) (*provider.Distribution, error) {
	if c.CreateErr != nil {
		return nil, c.CreateErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	dist := provider.Distribution{
		ID:         "DFAKE" + strings.ToUpper(strings.ReplaceAll(domain, ".", "")),
		DomainName: "dfake.cloudfront.net",
		Status:     "InProgress",
	}
	c.dists[domain] = dist
	c.Created = append(c.Created, domain)
	return &dist, nil
}
