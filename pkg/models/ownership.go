package models

import "time"

// WorkflowRole is the role a project holds on a workflow.
type WorkflowRole string

const (
	WorkflowRoleOwner  WorkflowRole = "workflow:owner"
	WorkflowRoleEditor WorkflowRole = "workflow:editor"
)

// OwnershipRecord binds a workflow to the project that owns or shares it.
type OwnershipRecord struct {
	WorkflowID string       `json:"workflowId"`
	ProjectID  string       `json:"projectId"`
	Role       WorkflowRole `json:"role"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// ProjectType distinguishes personal workspaces from shared ones.
type ProjectType string

const (
	ProjectTypePersonal ProjectType = "personal"
	ProjectTypeTeam     ProjectType = "team"
)

// Project is a workspace that owns workflows.
type Project struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      ProjectType `json:"type"`
	CreatedAt time.Time   `json:"createdAt"`
}

// ProjectRole is the role a user holds in a project.
type ProjectRole string

const (
	ProjectRolePersonalOwner ProjectRole = "project:personalOwner"
	ProjectRoleAdmin         ProjectRole = "project:admin"
	ProjectRoleEditor        ProjectRole = "project:editor"
	ProjectRoleViewer        ProjectRole = "project:viewer"
)

// ProjectRelation is a user's membership in a project.
type ProjectRelation struct {
	ProjectID string      `json:"projectId"`
	UserID    string      `json:"userId"`
	Role      ProjectRole `json:"role"`
}
