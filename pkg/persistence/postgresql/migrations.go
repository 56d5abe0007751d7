package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE automations (
				id VARCHAR(255) PRIMARY KEY,
				builder_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				events TEXT[],
				conditions JSONB,
				actions JSONB NOT NULL DEFAULT '[]',
				priority INT NOT NULL DEFAULT 0,
				is_active BOOLEAN NOT NULL DEFAULT true,
				total_executions INT NOT NULL DEFAULT 0,
				successful_executions INT NOT NULL DEFAULT 0,
				failed_executions INT NOT NULL DEFAULT 0,
				last_executed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE webhooks (
				id VARCHAR(255) PRIMARY KEY,
				builder_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				url TEXT NOT NULL,
				secret VARCHAR(255) NOT NULL,
				events TEXT[],
				filters JSONB,
				retry_count INT NOT NULL DEFAULT 3,
				timeout_seconds INT NOT NULL DEFAULT 30,
				is_active BOOLEAN NOT NULL DEFAULT true,
				total_deliveries INT NOT NULL DEFAULT 0,
				successful_deliveries INT NOT NULL DEFAULT 0,
				failed_deliveries INT NOT NULL DEFAULT 0,
				last_delivery_at TIMESTAMP WITH TIME ZONE,
				last_delivery_status VARCHAR(50) NOT NULL DEFAULT '',
				last_error TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE leads (
				id VARCHAR(255) PRIMARY KEY,
				builder_id VARCHAR(255) NOT NULL,
				property_id VARCHAR(255) NOT NULL DEFAULT '',
				name VARCHAR(255) NOT NULL DEFAULT '',
				email VARCHAR(255) NOT NULL DEFAULT '',
				phone VARCHAR(64) NOT NULL DEFAULT '',
				score DOUBLE PRECISION NOT NULL DEFAULT 0,
				status VARCHAR(64) NOT NULL DEFAULT '',
				stage VARCHAR(64) NOT NULL DEFAULT '',
				budget DOUBLE PRECISION NOT NULL DEFAULT 0,
				source VARCHAR(255) NOT NULL DEFAULT '',
				tags TEXT[],
				contact_count INT NOT NULL DEFAULT 0,
				last_contact_date TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE properties (
				id VARCHAR(255) PRIMARY KEY,
				builder_id VARCHAR(255) NOT NULL,
				title VARCHAR(255) NOT NULL DEFAULT '',
				city VARCHAR(255) NOT NULL DEFAULT '',
				locality VARCHAR(255) NOT NULL DEFAULT '',
				property_type VARCHAR(64) NOT NULL DEFAULT '',
				price DOUBLE PRECISION NOT NULL DEFAULT 0,
				bedrooms INT NOT NULL DEFAULT 0,
				status VARCHAR(64) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE webhook_deliveries (
				id VARCHAR(255) PRIMARY KEY,
				webhook_id VARCHAR(255) NOT NULL,
				builder_id VARCHAR(255) NOT NULL DEFAULT '',
				automation_run_id VARCHAR(255) NOT NULL DEFAULT '',
				event VARCHAR(255) NOT NULL DEFAULT '',
				payload JSONB,
				state VARCHAR(50) NOT NULL CHECK (state IN ('pending', 'sending', 'success', 'retrying', 'failed')),
				attempt_number INT NOT NULL DEFAULT 0,
				status_code INT NOT NULL DEFAULT 0,
				response_body TEXT NOT NULL DEFAULT '',
				response_time_ms BIGINT NOT NULL DEFAULT 0,
				error TEXT NOT NULL DEFAULT '',
				next_retry_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE automation_runs (
				id VARCHAR(255) PRIMARY KEY,
				automation_id VARCHAR(255) NOT NULL,
				builder_id VARCHAR(255) NOT NULL DEFAULT '',
				event_id VARCHAR(255) NOT NULL DEFAULT '',
				event_type VARCHAR(255) NOT NULL DEFAULT '',
				lead_id VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL,
				results JSONB,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);
		`,
		2: `
			CREATE INDEX idx_automations_builder_id ON automations(builder_id);
			CREATE INDEX idx_automations_active ON automations(builder_id, is_active);
			CREATE INDEX idx_webhooks_builder_id ON webhooks(builder_id);
			CREATE INDEX idx_leads_builder_id ON leads(builder_id);
			CREATE INDEX idx_webhook_deliveries_webhook_id ON webhook_deliveries(webhook_id, created_at DESC);
			CREATE INDEX idx_automation_runs_automation_id ON automation_runs(automation_id, started_at DESC);
		`,
	}
}
