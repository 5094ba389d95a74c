package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE flows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'inactive')),
				graph JSONB NOT NULL DEFAULT '{}',
				owner VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_flows_status ON flows(status);
			CREATE INDEX idx_flows_owner ON flows(owner);

			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				flow_id VARCHAR(255) NOT NULL REFERENCES flows(id),
				event_name VARCHAR(255) NOT NULL,
				event_payload JSONB NOT NULL DEFAULT '{}',
				recipient JSONB NOT NULL DEFAULT '{}',
				current_node_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'suspended', 'completed', 'failed')),
				wait_reason VARCHAR(50) NOT NULL DEFAULT '',
				failure_reason TEXT NOT NULL DEFAULT '',
				resume_at TIMESTAMP WITH TIME ZONE,
				resumed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_executions_flow_id ON executions(flow_id);
			CREATE INDEX idx_executions_status ON executions(status);
			CREATE INDEX idx_executions_resume_at ON executions(resume_at) WHERE status = 'suspended';

			CREATE TABLE execution_log (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL DEFAULT '',
				flow_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				node_kind VARCHAR(50) NOT NULL,
				outcome VARCHAR(50) NOT NULL CHECK (outcome IN ('success', 'failed', 'skipped')),
				attempt INT NOT NULL DEFAULT 1,
				error_detail TEXT NOT NULL DEFAULT '',
				recorded_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_execution_log_execution_id ON execution_log(execution_id);
			CREATE INDEX idx_execution_log_flow_id ON execution_log(flow_id);
			CREATE INDEX idx_execution_log_recorded_at ON execution_log(recorded_at);

			CREATE TABLE order_schedules (
				id VARCHAR(255) PRIMARY KEY,
				order_id VARCHAR(255) NOT NULL,
				recipient JSONB NOT NULL DEFAULT '{}',
				scheduled_at TIMESTAMP WITH TIME ZONE NOT NULL,
				remind_at TIMESTAMP WITH TIME ZONE NOT NULL,
				reminded BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_order_schedules_remind_at ON order_schedules(remind_at) WHERE NOT reminded;
		`,
	}
}
