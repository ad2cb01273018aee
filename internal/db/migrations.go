package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'quote_status') THEN
			CREATE TYPE quote_status AS ENUM ('DRAFT', 'SENT', 'VIEWED', 'ACCEPTED', 'DECLINED', 'EXPIRED', 'REVISED', 'CONVERTED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'line_item_type') THEN
			CREATE TYPE line_item_type AS ENUM ('LABOR', 'PARTS', 'SERVICE', 'OTHER');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'job_status') THEN
			CREATE TYPE job_status AS ENUM ('PENDING', 'SCHEDULED', 'IN_PROGRESS', 'ON_HOLD', 'QUALITY_CHECK', 'COMPLETED', 'PICKED_UP', 'CANCELLED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'task_status') THEN
			CREATE TYPE task_status AS ENUM ('PENDING', 'IN_PROGRESS', 'COMPLETED', 'SKIPPED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'part_status') THEN
			CREATE TYPE part_status AS ENUM ('PENDING', 'ORDERED', 'RECEIVED', 'INSTALLED', 'RETURNED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'invoice_status') THEN
			CREATE TYPE invoice_status AS ENUM ('DRAFT', 'SENT', 'VIEWED', 'PARTIAL', 'PAID', 'VOID');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'payment_status') THEN
			CREATE TYPE payment_status AS ENUM ('PENDING', 'COMPLETED', 'FAILED', 'REFUNDED');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS number_sequences (
		entity_type VARCHAR(16) NOT NULL,
		year INT NOT NULL,
		last_seq BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (entity_type, year)
	);`,
	`CREATE TABLE IF NOT EXISTS quotes (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		number VARCHAR(32) NOT NULL,
		customer_id UUID NOT NULL,
		service_request_id UUID,
		family_id UUID NOT NULL,
		revision INT NOT NULL DEFAULT 1,
		parent_quote_id UUID REFERENCES quotes(id),
		row_version INT NOT NULL DEFAULT 0,
		status quote_status NOT NULL DEFAULT 'DRAFT',
		subtotal NUMERIC(12,2) NOT NULL DEFAULT 0,
		tax_rate NUMERIC(6,4) NOT NULL DEFAULT 0,
		tax_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		discount_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		total NUMERIC(12,2) NOT NULL DEFAULT 0,
		valid_until TIMESTAMPTZ,
		sent_at TIMESTAMPTZ,
		viewed_at TIMESTAMPTZ,
		responded_at TIMESTAMPTZ,
		approved_by_name TEXT,
		decline_reason TEXT,
		converted_to_job_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_quotes_number ON quotes (number);`,
	`CREATE INDEX IF NOT EXISTS idx_quotes_customer_id ON quotes (customer_id);`,
	`CREATE INDEX IF NOT EXISTS idx_quotes_family_id ON quotes (family_id);`,
	`CREATE INDEX IF NOT EXISTS idx_quotes_status ON quotes (status);`,
	`CREATE TABLE IF NOT EXISTS quote_items (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		quote_id UUID NOT NULL REFERENCES quotes(id) ON DELETE CASCADE,
		type line_item_type NOT NULL,
		description TEXT NOT NULL,
		quantity NUMERIC(10,2) NOT NULL,
		unit_price NUMERIC(12,2) NOT NULL,
		total_price NUMERIC(12,2) NOT NULL,
		display_order INT NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_quote_items_quote_id ON quote_items (quote_id);`,
	`CREATE TABLE IF NOT EXISTS quote_status_history (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		entity_id UUID NOT NULL REFERENCES quotes(id) ON DELETE CASCADE,
		status VARCHAR(32) NOT NULL,
		previous_status VARCHAR(32),
		changed_by UUID,
		notes TEXT,
		changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_quote_status_history_entity_id ON quote_status_history (entity_id);`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		number VARCHAR(32) NOT NULL,
		customer_id UUID NOT NULL,
		quote_id UUID REFERENCES quotes(id),
		row_version INT NOT NULL DEFAULT 0,
		status job_status NOT NULL DEFAULT 'PENDING',
		quoted_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		actual_labor_cost NUMERIC(12,2) NOT NULL DEFAULT 0,
		actual_parts_cost NUMERIC(12,2) NOT NULL DEFAULT 0,
		actual_total NUMERIC(12,2) NOT NULL DEFAULT 0,
		scheduled_start TIMESTAMPTZ,
		scheduled_end TIMESTAMPTZ,
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		due_date TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_jobs_number ON jobs (number);`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_customer_id ON jobs (customer_id);`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status);`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_due_date ON jobs (due_date) WHERE due_date IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS job_tasks (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		description TEXT NOT NULL,
		status task_status NOT NULL DEFAULT 'PENDING',
		estimated_hours NUMERIC(8,2) NOT NULL DEFAULT 0,
		actual_hours NUMERIC(8,2) NOT NULL DEFAULT 0,
		depends_on_task_id UUID,
		completed_at TIMESTAMPTZ,
		display_order INT NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_job_tasks_job_id ON job_tasks (job_id);`,
	`CREATE TABLE IF NOT EXISTS job_parts (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		task_id UUID,
		part_ref VARCHAR(64) NOT NULL,
		description TEXT NOT NULL,
		quantity NUMERIC(10,2) NOT NULL,
		unit_cost NUMERIC(12,2) NOT NULL DEFAULT 0,
		unit_price NUMERIC(12,2) NOT NULL,
		total_price NUMERIC(12,2) NOT NULL,
		status part_status NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_job_parts_job_id ON job_parts (job_id);`,
	`CREATE TABLE IF NOT EXISTS job_labor (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		task_id UUID,
		employee_id UUID NOT NULL,
		description TEXT NOT NULL,
		hours NUMERIC(8,2) NOT NULL,
		hourly_rate NUMERIC(12,2) NOT NULL,
		total_amount NUMERIC(12,2) NOT NULL,
		performed_date DATE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_job_labor_job_id ON job_labor (job_id);`,
	`CREATE TABLE IF NOT EXISTS job_status_history (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		entity_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		status VARCHAR(32) NOT NULL,
		previous_status VARCHAR(32),
		changed_by UUID,
		notes TEXT,
		changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_job_status_history_entity_id ON job_status_history (entity_id);`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		number VARCHAR(32) NOT NULL,
		customer_id UUID NOT NULL,
		job_id UUID REFERENCES jobs(id),
		row_version INT NOT NULL DEFAULT 0,
		status invoice_status NOT NULL DEFAULT 'DRAFT',
		subtotal NUMERIC(12,2) NOT NULL DEFAULT 0,
		tax_rate NUMERIC(6,4) NOT NULL DEFAULT 0,
		tax_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		discount_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		total NUMERIC(12,2) NOT NULL DEFAULT 0,
		amount_paid NUMERIC(12,2) NOT NULL DEFAULT 0,
		balance_due NUMERIC(12,2) NOT NULL DEFAULT 0,
		invoice_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		due_date TIMESTAMPTZ NOT NULL,
		sent_at TIMESTAMPTZ,
		viewed_at TIMESTAMPTZ,
		paid_at TIMESTAMPTZ,
		voided_at TIMESTAMPTZ,
		void_reason TEXT,
		reminder_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_invoices_number ON invoices (number);`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_customer_id ON invoices (customer_id);`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_job_id ON invoices (job_id) WHERE job_id IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices (status);`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_due_date ON invoices (due_date);`,
	`CREATE TABLE IF NOT EXISTS invoice_items (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		invoice_id UUID NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		type line_item_type NOT NULL,
		description TEXT NOT NULL,
		quantity NUMERIC(10,2) NOT NULL,
		unit_price NUMERIC(12,2) NOT NULL,
		total_price NUMERIC(12,2) NOT NULL,
		job_part_id UUID,
		job_labor_id UUID,
		display_order INT NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice_id ON invoice_items (invoice_id);`,
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		invoice_id UUID NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		amount NUMERIC(12,2) NOT NULL,
		method VARCHAR(32) NOT NULL,
		status payment_status NOT NULL DEFAULT 'COMPLETED',
		refund_of UUID REFERENCES payments(id),
		reference TEXT,
		date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_payments_invoice_id ON payments (invoice_id);`,
	`CREATE TABLE IF NOT EXISTS invoice_status_history (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		entity_id UUID NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		status VARCHAR(32) NOT NULL,
		previous_status VARCHAR(32),
		changed_by UUID,
		notes TEXT,
		changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_status_history_entity_id ON invoice_status_history (entity_id);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
