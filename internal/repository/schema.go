package repository

// Schema definitions for the Heron database.
// Compatible with both SQLite and PostgreSQL.

const schemaClaims = `
CREATE TABLE IF NOT EXISTS claims (
    claim_id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    member_name TEXT NOT NULL,
    member_join_date TEXT,
    treatment_date TEXT NOT NULL,
    claim_amount REAL NOT NULL,
    category TEXT,
    diagnosis TEXT,
    hospital_name TEXT,
    cashless_request INTEGER NOT NULL DEFAULT 0,
    documents TEXT,
    extracted TEXT,
    status TEXT NOT NULL,
    decision TEXT,
    approved_amount REAL NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    processed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_claims_tenant ON claims(tenant_id);
CREATE INDEX IF NOT EXISTS idx_claims_member ON claims(tenant_id, member_id);
CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_claims_created ON claims(tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_claims_member_date ON claims(tenant_id, member_id, treatment_date);
`

const schemaAppeals = `
CREATE TABLE IF NOT EXISTS appeals (
    appeal_id TEXT PRIMARY KEY,
    claim_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    reason TEXT NOT NULL,
    additional_documents TEXT,
    status TEXT NOT NULL,
    resolution TEXT,
    created_at TIMESTAMP NOT NULL,
    resolved_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_appeals_tenant ON appeals(tenant_id);
CREATE INDEX IF NOT EXISTS idx_appeals_claim ON appeals(tenant_id, claim_id);
`

const schemaPolicyTerms = `
CREATE TABLE IF NOT EXISTS policy_terms (
    tenant_id TEXT PRIMARY KEY,
    version TEXT NOT NULL,
    terms TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// schemaFraudRules stores CEL fraud signal rules per tenant. Versioned:
// the newest enabled version of a rule wins.
const schemaFraudRules = `
CREATE TABLE IF NOT EXISTS fraud_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    flag TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 0.1,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_fraud_rules_tenant ON fraud_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_fraud_rules_enabled ON fraud_rules(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaClaims,
		schemaAppeals,
		schemaPolicyTerms,
		schemaFraudRules,
	}
}
