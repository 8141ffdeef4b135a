package model

import "time"

// FileType distinguishes a resume from a job description.
type FileType string

const (
	FileTypeResume FileType = "resume"
	FileTypeJD     FileType = "job_description"
)

// EmbeddingStatus tracks a Document's position in the ingestion lifecycle.
type EmbeddingStatus string

const (
	StatusPending    EmbeddingStatus = "pending"
	StatusProcessing EmbeddingStatus = "processing"
	StatusCompleted  EmbeddingStatus = "completed"
	StatusFailed     EmbeddingStatus = "failed"
)

// Document is an uploaded résumé or job description.
//
// ID (document_id) is the only identifier downstream matching ever uses; FileID is a
// client-visible handle and is never accepted where a document_id is expected.
type Document struct {
	ID              string          `json:"documentId"`
	FileID          string          `json:"fileId"`
	Filename        string          `json:"filename"`
	FileType        FileType        `json:"fileType"`
	RawText         string          `json:"-"`
	CleanedText     string          `json:"-"`
	Language        string          `json:"language"`
	WordCount       int             `json:"wordCount"`
	CharCount       int             `json:"charCount"`
	PageCount       int             `json:"pageCount"`
	EmbeddingStatus EmbeddingStatus `json:"embeddingStatus"`
	ChunkCount      int             `json:"chunkCount"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// SectionType is the closed-vocabulary section tag assigned to a Chunk.
// Résumé and job-description documents draw from disjoint sub-vocabularies,
// but both share the Other fallback.
type SectionType string

const (
	// Résumé sections.
	SectionSummary        SectionType = "summary"
	SectionExperience     SectionType = "experience"
	SectionSkills         SectionType = "skills"
	SectionEducation      SectionType = "education"
	SectionProjects       SectionType = "projects"
	SectionCertifications SectionType = "certifications"

	// Job-description sections.
	SectionRequirements     SectionType = "requirements"
	SectionPreferred        SectionType = "preferred"
	SectionResponsibilities SectionType = "responsibilities"
	SectionTechnical        SectionType = "technical"
	SectionBenefits         SectionType = "benefits"

	// Shared fallback.
	SectionOther SectionType = "other"
)

// Chunk is a bounded, embeddable region of a Document's normalized text.
// It is eligible for matching iff Embedding is non-nil.
type Chunk struct {
	ID             string      `json:"id"`
	DocumentID     string      `json:"documentId"`
	ChunkIndex     int         `json:"chunkIndex"`
	Content        string      `json:"content"`
	SectionType    SectionType `json:"sectionType"`
	CharCount      int         `json:"charCount"`
	TokenCount     int         `json:"tokenCount"`
	Embedding      []float32   `json:"-"`
	EmbeddingModel string      `json:"embeddingModel,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}
