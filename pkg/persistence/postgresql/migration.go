package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				active BOOLEAN NOT NULL DEFAULT false,
				graph JSONB NOT NULL,
				version_id TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_updated_at ON workflows(updated_at);

			CREATE TABLE projects (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				type VARCHAR(32) NOT NULL CHECK (type IN ('personal', 'team')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE project_relations (
				project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				user_id TEXT NOT NULL,
				role VARCHAR(64) NOT NULL,
				PRIMARY KEY (project_id, user_id)
			);

			CREATE INDEX idx_project_relations_user_id ON project_relations(user_id);

			CREATE TABLE workflow_ownerships (
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				role VARCHAR(64) NOT NULL CHECK (role IN ('workflow:owner', 'workflow:editor')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (workflow_id, project_id)
			);

			CREATE INDEX idx_workflow_ownerships_project_id ON workflow_ownerships(project_id);

			-- Origin is not a foreign key: entries outlive the workflow they were published from.
			CREATE TABLE catalog_entries (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category VARCHAR(255) NOT NULL,
				author_id TEXT NOT NULL,
				author_name TEXT NOT NULL,
				graph JSONB NOT NULL,
				downloads BIGINT NOT NULL DEFAULT 0 CHECK (downloads >= 0),
				is_public BOOLEAN NOT NULL DEFAULT true,
				origin_workflow_id TEXT,
				created_by TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (origin_workflow_id, author_id)
			);

			CREATE INDEX idx_catalog_entries_author_id ON catalog_entries(author_id);
			CREATE INDEX idx_catalog_entries_public_updated ON catalog_entries(is_public, updated_at DESC);
		`,
		2: `
			ALTER TABLE workflows ADD COLUMN is_published BOOLEAN NOT NULL DEFAULT false;
		`,
	}
}
