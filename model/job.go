/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package model

import "time"

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// GenerationJob is the tracked state of one generation request.
// Progress is 100 only once the job succeeded and ResultURL is set.
type GenerationJob struct {
	RequestID string    `json:"request_id"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	ResultURL *string   `json:"result_url"`
	Error     string    `json:"error,omitempty"`
	Style     string    `json:"style,omitempty"`
	SourceURL string    `json:"-"`
	UserID    string    `json:"user_id,omitempty"`
	Paid      bool      `json:"-"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func (j *GenerationJob) Terminal() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed
}
