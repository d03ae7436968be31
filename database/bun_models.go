package database

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

// BunJob is the Bun model for jobs
type BunJob struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID          string     `bun:"id,pk"` // ULID as string
	Type        string     `bun:"type,notnull"`
	Status      string     `bun:"status,default:'pending'"`
	Progress    int        `bun:"progress,default:0"`
	CurrentStep string     `bun:"current_step,default:''"`
	TotalSteps  int        `bun:"total_steps,default:0"`
	Message     string     `bun:"message,default:''"`
	Error       string     `bun:"error,nullzero"`
	Result      string     `bun:"result,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	StartedAt   *time.Time `bun:"started_at,nullzero"`
	CompletedAt *time.Time `bun:"completed_at,nullzero"`
}

// ToJob converts BunJob to Job
func (bj *BunJob) ToJob() (*Job, error) {
	parsedULID, err := ulid.Parse(bj.ID)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:          parsedULID,
		Type:        JobType(bj.Type),
		Status:      JobStatus(bj.Status),
		Progress:    bj.Progress,
		CurrentStep: bj.CurrentStep,
		TotalSteps:  bj.TotalSteps,
		Message:     bj.Message,
		Error:       bj.Error,
		Result:      bj.Result,
		CreatedAt:   bj.CreatedAt,
		UpdatedAt:   bj.UpdatedAt,
		StartedAt:   bj.StartedAt,
		CompletedAt: bj.CompletedAt,
	}, nil
}

// FromJob converts Job to BunJob
func FromJob(job *Job) *BunJob {
	return &BunJob{
		ID:          job.ID.String(),
		Type:        string(job.Type),
		Status:      string(job.Status),
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		TotalSteps:  job.TotalSteps,
		Message:     job.Message,
		Error:       job.Error,
		Result:      job.Result,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}

// BunPage is the Bun model for rendered pages
type BunPage struct {
	bun.BaseModel `bun:"table:pages,alias:p"`

	JobID     string    `bun:"job_id,pk"`
	PageIndex int       `bun:"page_index,pk"`
	Path      string    `bun:"path,notnull"`
	ObjectKey string    `bun:"object_key,nullzero"`
	Width     int       `bun:"width,notnull,default:0"`
	Height    int       `bun:"height,notnull,default:0"`
	SizeBytes int64     `bun:"size_bytes,notnull,default:0"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ToPageRecord converts BunPage to PageRecord
func (bp *BunPage) ToPageRecord() (*PageRecord, error) {
	parsedULID, err := ulid.Parse(bp.JobID)
	if err != nil {
		return nil, err
	}
	return &PageRecord{
		JobID:     parsedULID,
		PageIndex: bp.PageIndex,
		Path:      bp.Path,
		ObjectKey: bp.ObjectKey,
		Width:     bp.Width,
		Height:    bp.Height,
		SizeBytes: bp.SizeBytes,
		CreatedAt: bp.CreatedAt,
	}, nil
}

// FromPageRecord converts PageRecord to BunPage
func FromPageRecord(page *PageRecord) *BunPage {
	return &BunPage{
		JobID:     page.JobID.String(),
		PageIndex: page.PageIndex,
		Path:      page.Path,
		ObjectKey: page.ObjectKey,
		Width:     page.Width,
		Height:    page.Height,
		SizeBytes: page.SizeBytes,
		CreatedAt: page.CreatedAt,
	}
}
