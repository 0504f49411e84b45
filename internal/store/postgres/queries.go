package postgres

const queryInsertCommand = `
INSERT INTO commands (id, channel_id, raw_text, mode, received_at)
VALUES ($1, $2, $3, $4, $5)
`

const queryInsertCreationAttempt = `
INSERT INTO creation_attempts (
    id, command_id, channel_id, event_name,
    starts_at, ends_at, timezone, recurrence_kind,
    status, attempts, error, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

const queryGetAttemptStatus = `
SELECT status FROM creation_attempts WHERE id = $1
`

const queryUpdateAttemptStatus = `
UPDATE creation_attempts
SET status = $1, attempts = $2, error = $3, updated_at = $4
WHERE id = $5
  AND status NOT IN ('created', 'rejected', 'failed')
`

const queryGetStalePendingAttempts = `
SELECT id, command_id, channel_id, event_name,
       starts_at, ends_at, timezone, recurrence_kind,
       status, attempts, error, created_at, updated_at
FROM creation_attempts
WHERE status = 'pending'
  AND created_at < $1
ORDER BY created_at ASC
LIMIT $2
`

const queryFailStaleAttempts = `
WITH stale AS (
    SELECT id FROM creation_attempts
    WHERE status = 'pending'
      AND created_at < $1
    ORDER BY created_at ASC
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
UPDATE creation_attempts
SET status = 'failed', error = 'abandoned: no result recorded', updated_at = $3
FROM stale
WHERE creation_attempts.id = stale.id
`

const queryListRecentAttempts = `
SELECT id, command_id, channel_id, event_name,
       starts_at, ends_at, timezone, recurrence_kind,
       status, attempts, error, created_at, updated_at
FROM creation_attempts
WHERE channel_id = $1
ORDER BY created_at DESC
LIMIT $2
`
