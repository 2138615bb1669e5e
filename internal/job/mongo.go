package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Compile-time check that MongoStore implements Store.
var _ Store = (*MongoStore)(nil)

// jobDoc is the MongoDB representation of a Job.
type jobDoc struct {
	JobID          string    `bson:"job_id"`
	Status         Status    `bson:"status"`
	Progress       int       `bson:"progress"`
	Prompt         string    `bson:"prompt"`
	NegativePrompt string    `bson:"negative_prompt,omitempty"`
	PromptSource   Source    `bson:"prompt_source"`
	Error          string    `bson:"error,omitempty"`
	LocalPath      string    `bson:"local_path,omitempty"`
	ArtifactKey    string    `bson:"artifact_key,omitempty"`
	ArtifactURL    string    `bson:"artifact_url,omitempty"`
	StreamURL      string    `bson:"stream_url,omitempty"`
	ThumbTrackURL  string    `bson:"thumb_track_url,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
}

func toDoc(j *Job) jobDoc {
	return jobDoc{
		JobID:          j.ID,
		Status:         j.Status,
		Progress:       j.Progress,
		Prompt:         j.Prompt,
		NegativePrompt: j.NegativePrompt,
		PromptSource:   j.PromptSource,
		Error:          j.Error,
		LocalPath:      j.LocalPath,
		ArtifactKey:    j.ArtifactKey,
		ArtifactURL:    j.ArtifactURL,
		StreamURL:      j.StreamURL,
		ThumbTrackURL:  j.ThumbTrackURL,
		CreatedAt:      j.CreatedAt,
	}
}

func (d jobDoc) toJob() *Job {
	return &Job{
		ID:             d.JobID,
		Status:         d.Status,
		Progress:       d.Progress,
		Prompt:         d.Prompt,
		NegativePrompt: d.NegativePrompt,
		PromptSource:   d.PromptSource,
		Error:          d.Error,
		LocalPath:      d.LocalPath,
		ArtifactKey:    d.ArtifactKey,
		ArtifactURL:    d.ArtifactURL,
		StreamURL:      d.StreamURL,
		ThumbTrackURL:  d.ThumbTrackURL,
		CreatedAt:      d.CreatedAt,
	}
}

// setFields converts the non-nil fields of an Update into the $set
// document for UpdateOne.
func (u Update) setFields() bson.M {
	set := bson.M{}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.Progress != nil {
		set["progress"] = *u.Progress
	}
	if u.Error != nil {
		set["error"] = *u.Error
	}
	if u.LocalPath != nil {
		set["local_path"] = *u.LocalPath
	}
	if u.ArtifactKey != nil {
		set["artifact_key"] = *u.ArtifactKey
	}
	if u.ArtifactURL != nil {
		set["artifact_url"] = *u.ArtifactURL
	}
	if u.StreamURL != nil {
		set["stream_url"] = *u.StreamURL
	}
	if u.ThumbTrackURL != nil {
		set["thumb_track_url"] = *u.ThumbTrackURL
	}
	return set
}

// MongoStore is a MongoDB-backed implementation of Store.
// Each job is one document in the videos collection, keyed by job_id.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a MongoStore on the given database and ensures a
// unique index on job_id. Index creation failure is not fatal; the caller
// can still operate against an un-indexed collection.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	coll := db.Collection("videos")

	idxCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := coll.Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "job_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create job_id index: %w", err)
	}

	return &MongoStore{coll: coll}, nil
}

// Create persists a new job record.
func (s *MongoStore) Create(ctx context.Context, j *Job) error {
	if _, err := s.coll.InsertOne(ctx, toDoc(j)); err != nil {
		return fmt.Errorf("insert job %s: %w", j.ID, err)
	}
	return nil
}

// Get retrieves a job by its ID.
func (s *MongoStore) Get(ctx context.Context, jobID string) (*Job, error) {
	var d jobDoc
	err := s.coll.FindOne(ctx, bson.M{"job_id": jobID}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find job %s: %w", jobID, err)
	}
	return d.toJob(), nil
}

// Update applies a partial $set update to the named job. The filter
// excludes terminal records, so a done or errored job is never rewritten.
func (s *MongoStore) Update(ctx context.Context, jobID string, u Update) error {
	set := u.setFields()
	if len(set) == 0 {
		return nil
	}

	filter := bson.M{
		"job_id": jobID,
		"status": bson.M{"$nin": bson.A{StatusDone, StatusError}},
	}
	res, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the total job count and one page ordered by creation time,
// most recent first.
func (s *MongoStore) List(ctx context.Context, page, perPage int) (int64, []*Job, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	total, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, nil, fmt.Errorf("count jobs: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * perPage)).
		SetLimit(int64(perPage))

	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return 0, nil, fmt.Errorf("list jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []jobDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return 0, nil, fmt.Errorf("decode jobs: %w", err)
	}

	jobs := make([]*Job, 0, len(docs))
	for _, d := range docs {
		jobs = append(jobs, d.toJob())
	}
	return total, jobs, nil
}
