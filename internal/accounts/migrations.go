package accounts

import "overseer/internal/database"

// Migrations returns the accounts schema set. Append-only: the ledger
// checksums every entry, so published migrations must never change.
func Migrations() database.Set {
	return database.Set{
		Module: "accounts",
		Migrations: []database.Migration{
			{
				Description: "create accounts table",
				UpSQL: `
					CREATE EXTENSION IF NOT EXISTS "pgcrypto";
					CREATE TABLE accounts (
						id uuid NOT NULL DEFAULT gen_random_uuid(),
						data jsonb,
						inserted_at timestamp without time zone NOT NULL DEFAULT now(),
						CONSTRAINT accounts_pkey PRIMARY KEY (id)
					);`,
				DownSQL: `DROP TABLE accounts;`,
			},
			{
				Description: "create accounts_locals table",
				UpSQL: `
					CREATE TABLE accounts_locals (
						id uuid NOT NULL,
						login text NOT NULL,
						password_hash text,
						data jsonb,
						inserted_at timestamp without time zone NOT NULL DEFAULT now(),
						updated_at timestamp without time zone NOT NULL DEFAULT now(),
						removed_at timestamp without time zone,
						CONSTRAINT accounts_locals_pkey PRIMARY KEY (id, updated_at),
						CONSTRAINT accounts_locals_id_fkey FOREIGN KEY (id) REFERENCES accounts (id) ON DELETE RESTRICT
					);
					CREATE UNIQUE INDEX accounts_locals_id_index ON accounts_locals (id) WHERE removed_at IS NULL;
					CREATE UNIQUE INDEX accounts_locals_login_lower_index ON accounts_locals (lower(login)) WHERE removed_at IS NULL;`,
				DownSQL: `
					DROP INDEX accounts_locals_login_lower_index;
					DROP INDEX accounts_locals_id_index;
					DROP TABLE accounts_locals;`,
			},
			{
				Description: "create accounts_sessions table",
				UpSQL: `
					CREATE TABLE accounts_sessions (
						id uuid NOT NULL,
						token uuid NOT NULL,
						inserted_at timestamp without time zone NOT NULL DEFAULT now(),
						valid_until timestamp without time zone NOT NULL,
						CONSTRAINT accounts_sessions_pkey PRIMARY KEY (id, token),
						CONSTRAINT accounts_sessions_id_fkey FOREIGN KEY (id) REFERENCES accounts (id) ON UPDATE CASCADE ON DELETE CASCADE
					);`,
				DownSQL: `DROP TABLE accounts_sessions;`,
			},
		},
	}
}
