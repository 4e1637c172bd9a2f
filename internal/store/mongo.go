// internal/store/mongo.go
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harvex/leadharvest/internal/utils"
	"github.com/harvex/leadharvest/pkg/types"
)

var mongoLogger = utils.NewComponentLogger("mongo-store")

// MongoStore implements JobStore on MongoDB.
type MongoStore struct {
	client  *mongo.Client
	jobs    *mongo.Collection
	results *mongo.Collection
}

// mongoJob is the document shape for job records.
type mongoJob struct {
	ID              string          `bson:"_id"`
	TaskType        string          `bson:"task_type"`
	AdapterName     string          `bson:"adapter_name"`
	Query           string          `bson:"query,omitempty"`
	URLs            []string        `bson:"urls"`
	Status          string          `bson:"status"`
	ProgressPercent int             `bson:"progress_percent"`
	TotalURLs       int             `bson:"total_urls"`
	CompletedURLs   int             `bson:"completed_urls"`
	FailedURLs      int             `bson:"failed_urls"`
	ResultsCount    int             `bson:"results_count"`
	ErrorMessage    string          `bson:"error_message,omitempty"`
	CreatedAt       time.Time       `bson:"created_at"`
	UpdatedAt       time.Time       `bson:"updated_at"`
	StartedAt       *time.Time      `bson:"started_at,omitempty"`
	CompletedAt     *time.Time      `bson:"completed_at,omitempty"`
}

// mongoResult is the document shape for result records.
type mongoResult struct {
	ID         string                 `bson:"_id"`
	JobID      string                 `bson:"job_id"`
	URL        string                 `bson:"url"`
	ResultType string                 `bson:"result_type"`
	Data       map[string]interface{} `bson:"data"`
	ScrapedAt  time.Time              `bson:"scraped_at"`
}

// NewMongoStore connects to MongoDB and prepares the collections.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = "leadharvest"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "MongoDB unreachable")
	}

	db := client.Database(database)
	s := &MongoStore{
		client:  client,
		jobs:    db.Collection("jobs"),
		results: db.Collection("results"),
	}

	indexCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = s.results.Indexes().CreateOne(indexCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "job_id", Value: 1}},
	})
	if err != nil {
		mongoLogger.Warnf("failed to ensure results index: %v", err)
	}

	mongoLogger.Infof("opened mongo job store (database %s)", database)
	return s, nil
}

// CreateJob inserts a new job document.
func (s *MongoStore) CreateJob(ctx context.Context, job *types.Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = types.StatusPending
	}

	doc := toMongoJob(job)
	if _, err := s.jobs.InsertOne(ctx, doc); err != nil {
		return "", utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to insert job")
	}
	return job.ID, nil
}

// UpdateJob applies the partial update as a single $set, which MongoDB
// applies atomically per document. The filter excludes terminal statuses,
// so a job that completed concurrently stays untouched.
func (s *MongoStore) UpdateJob(ctx context.Context, id string, update JobUpdate) error {
	set := bson.M{"updated_at": time.Now().UTC()}

	if update.Status != nil {
		set["status"] = string(*update.Status)
	}
	if update.ProgressPercent != nil {
		set["progress_percent"] = *update.ProgressPercent
	}
	if update.TotalURLs != nil {
		set["total_urls"] = *update.TotalURLs
	}
	if update.CompletedURLs != nil {
		set["completed_urls"] = *update.CompletedURLs
	}
	if update.FailedURLs != nil {
		set["failed_urls"] = *update.FailedURLs
	}
	if update.ResultsCount != nil {
		set["results_count"] = *update.ResultsCount
	}
	if update.ErrorMessage != nil {
		set["error_message"] = *update.ErrorMessage
	}
	if update.URLs != nil {
		set["urls"] = update.URLs
	}
	if update.StartedAt != nil {
		set["started_at"] = *update.StartedAt
	}
	if update.CompletedAt != nil {
		set["completed_at"] = *update.CompletedAt
	}

	terminal := make([]string, 0, 3)
	for _, status := range terminalStatuses() {
		terminal = append(terminal, string(status))
	}
	filter := bson.M{"_id": id, "status": bson.M{"$nin": terminal}}

	res, err := s.jobs.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to update job")
	}
	if res.MatchedCount == 0 {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			return err
		}
		return errAlreadyTerminal(id, job.Status)
	}
	return nil
}

// GetJob loads a single job document.
func (s *MongoStore) GetJob(ctx context.Context, id string) (*types.Job, error) {
	var doc mongoJob
	err := s.jobs.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, errJobNotFound(id)
	}
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to load job")
	}
	return fromMongoJob(&doc), nil
}

// ListJobs returns up to limit jobs, newest first.
func (s *MongoStore) ListJobs(ctx context.Context, limit int) ([]types.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.jobs.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to list jobs")
	}
	defer cursor.Close(ctx)

	var jobs []types.Job
	for cursor.Next(ctx) {
		var doc mongoJob
		if err := cursor.Decode(&doc); err != nil {
			return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to decode job document")
		}
		jobs = append(jobs, *fromMongoJob(&doc))
	}
	return jobs, cursor.Err()
}

// SaveResult inserts an immutable result document.
func (s *MongoStore) SaveResult(ctx context.Context, result *types.Result) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.ScrapedAt.IsZero() {
		result.ScrapedAt = time.Now().UTC()
	}

	doc := mongoResult{
		ID:         result.ID,
		JobID:      result.JobID,
		URL:        result.URL,
		ResultType: string(result.ResultType),
		Data:       result.Data,
		ScrapedAt:  result.ScrapedAt,
	}
	if _, err := s.results.InsertOne(ctx, doc); err != nil {
		return utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to insert result")
	}
	return nil
}

// GetResults returns all result documents for a job.
func (s *MongoStore) GetResults(ctx context.Context, jobID string) ([]types.Result, error) {
	opts := options.Find().SetSort(bson.D{{Key: "scraped_at", Value: 1}})
	cursor, err := s.results.Find(ctx, bson.M{"job_id": jobID}, opts)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to load results")
	}
	defer cursor.Close(ctx)

	var results []types.Result
	for cursor.Next(ctx) {
		var doc mongoResult
		if err := cursor.Decode(&doc); err != nil {
			return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to decode result document")
		}
		results = append(results, types.Result{
			ID:         doc.ID,
			JobID:      doc.JobID,
			URL:        doc.URL,
			ResultType: types.TaskType(doc.ResultType),
			Data:       doc.Data,
			ScrapedAt:  doc.ScrapedAt,
		})
	}
	return results, cursor.Err()
}

// Stats aggregates job counts for the dashboard.
func (s *MongoStore) Stats(ctx context.Context) (*types.JobStats, error) {
	stats := &types.JobStats{}

	count := func(filter bson.M) (int, error) {
		n, err := s.jobs.CountDocuments(ctx, filter)
		return int(n), err
	}

	var err error
	if stats.TotalJobs, err = count(bson.M{}); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to count jobs")
	}
	if stats.CompletedJobs, err = count(bson.M{"status": string(types.StatusCompleted)}); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to count completed jobs")
	}
	if stats.FailedJobs, err = count(bson.M{"status": string(types.StatusFailed)}); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to count failed jobs")
	}
	if stats.RunningJobs, err = count(bson.M{"status": string(types.StatusRunning)}); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to count running jobs")
	}

	total, err := s.results.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to count results")
	}
	stats.TotalResults = int(total)

	recent, err := s.ListJobs(ctx, 10)
	if err != nil {
		return nil, err
	}
	stats.RecentJobs = recent
	return stats, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toMongoJob(job *types.Job) *mongoJob {
	doc := &mongoJob{
		ID:              job.ID,
		TaskType:        string(job.TaskType),
		AdapterName:     job.AdapterName,
		Query:           job.Query,
		URLs:            job.URLs,
		Status:          string(job.Status),
		ProgressPercent: job.ProgressPercent,
		TotalURLs:       job.TotalURLs,
		CompletedURLs:   job.CompletedURLs,
		FailedURLs:      job.FailedURLs,
		ResultsCount:    job.ResultsCount,
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
	if !job.StartedAt.IsZero() {
		doc.StartedAt = &job.StartedAt
	}
	if !job.CompletedAt.IsZero() {
		doc.CompletedAt = &job.CompletedAt
	}
	return doc
}

func fromMongoJob(doc *mongoJob) *types.Job {
	job := &types.Job{
		ID:              doc.ID,
		TaskType:        types.TaskType(doc.TaskType),
		AdapterName:     doc.AdapterName,
		Query:           doc.Query,
		URLs:            doc.URLs,
		Status:          types.JobStatus(doc.Status),
		ProgressPercent: doc.ProgressPercent,
		TotalURLs:       doc.TotalURLs,
		CompletedURLs:   doc.CompletedURLs,
		FailedURLs:      doc.FailedURLs,
		ResultsCount:    doc.ResultsCount,
		ErrorMessage:    doc.ErrorMessage,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	if doc.StartedAt != nil {
		job.StartedAt = *doc.StartedAt
	}
	if doc.CompletedAt != nil {
		job.CompletedAt = *doc.CompletedAt
	}
	return job
}
