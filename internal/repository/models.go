package repository

import (
	"time"

	"github.com/yz4230/rolling/internal/entity"
	"gorm.io/gorm"
)

type Run struct {
	gorm.Model
	UID        string `gorm:"uniqueIndex"`
	Trigger    string
	Ref        string
	CommitSHA  string
	ImageTag   string
	ImageURI   string
	Status     string `gorm:"index"`
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

func (r *Run) ToEntity() *entity.Run {
	return &entity.Run{
		ID:         entity.NewID(r.ID),
		UID:        r.UID,
		Trigger:    r.Trigger,
		Ref:        r.Ref,
		CommitSHA:  r.CommitSHA,
		ImageTag:   r.ImageTag,
		ImageURI:   r.ImageURI,
		Status:     entity.RunStatus(r.Status),
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: fromPtr(r.FinishedAt),
	}
}

func (r *Run) FromEntity(e *entity.Run) {
	if e.ID.Valid() {
		r.ID = e.ID.Uint()
	}
	r.UID = e.UID
	r.Trigger = e.Trigger
	r.Ref = e.Ref
	r.CommitSHA = e.CommitSHA
	r.ImageTag = e.ImageTag
	r.ImageURI = e.ImageURI
	r.Status = string(e.Status)
	r.Error = e.Error
	r.StartedAt = e.StartedAt
	r.FinishedAt = toPtr(e.FinishedAt)
}

type StageExecution struct {
	gorm.Model
	RunID      uint `gorm:"index"`
	Run        Run
	Name       string
	Position   int
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

func (s *StageExecution) ToEntity() *entity.StageExecution {
	return &entity.StageExecution{
		ID:         entity.NewID(s.ID),
		RunID:      entity.NewID(s.RunID),
		Name:       s.Name,
		Position:   s.Position,
		Status:     entity.RunStatus(s.Status),
		Error:      s.Error,
		StartedAt:  s.StartedAt,
		FinishedAt: fromPtr(s.FinishedAt),
	}
}

func (s *StageExecution) FromEntity(e *entity.StageExecution) {
	if e.ID.Valid() {
		s.ID = e.ID.Uint()
	}
	if e.RunID.Valid() {
		s.RunID = e.RunID.Uint()
	}
	s.Name = e.Name
	s.Position = e.Position
	s.Status = string(e.Status)
	s.Error = e.Error
	s.StartedAt = e.StartedAt
	s.FinishedAt = toPtr(e.FinishedAt)
}

type Cluster struct {
	gorm.Model
	Name              string `gorm:"uniqueIndex"`
	Region            string
	Version           string
	Endpoint          string
	AdminRoleARN      string
	DeploymentRoleARN string
	RepositoryURI     string
}

func (c *Cluster) ToEntity() *entity.ClusterRef {
	return &entity.ClusterRef{
		ID:                entity.NewID(c.ID),
		Name:              c.Name,
		Region:            c.Region,
		Version:           c.Version,
		Endpoint:          c.Endpoint,
		AdminRoleARN:      c.AdminRoleARN,
		DeploymentRoleARN: c.DeploymentRoleARN,
		RepositoryURI:     c.RepositoryURI,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func (c *Cluster) FromEntity(e *entity.ClusterRef) {
	if e.ID.Valid() {
		c.ID = e.ID.Uint()
	}
	c.Name = e.Name
	c.Region = e.Region
	c.Version = e.Version
	c.Endpoint = e.Endpoint
	c.AdminRoleARN = e.AdminRoleARN
	c.DeploymentRoleARN = e.DeploymentRoleARN
	c.RepositoryURI = e.RepositoryURI
}

func toPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func fromPtr(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
