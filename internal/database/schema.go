package database

// Schema contains all SQL statements for creating tables and indexes.
// It is valid for both SQLite and PostgreSQL.
const Schema = `
-- Athletes who connected through OAuth or were discovered by a sync
CREATE TABLE IF NOT EXISTS athletes (
    athlete_id BIGINT PRIMARY KEY,
    firstname TEXT,
    lastname TEXT,
    city TEXT,
    country TEXT,
    raw TEXT,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

-- One live Strava token set per athlete, overwritten on every refresh
CREATE TABLE IF NOT EXISTS strava_tokens (
    athlete_id BIGINT PRIMARY KEY REFERENCES athletes(athlete_id) ON DELETE CASCADE,
    access_token TEXT NOT NULL,
    refresh_token TEXT NOT NULL,
    expires_at BIGINT NOT NULL,
    scope TEXT,
    updated_at BIGINT NOT NULL
);

-- Sync cursors keyed by (athlete, source, key)
CREATE TABLE IF NOT EXISTS ingestion_state (
    athlete_id BIGINT NOT NULL,
    source TEXT NOT NULL,
    key TEXT NOT NULL,
    value BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    PRIMARY KEY (athlete_id, source, key)
);

-- Activities as returned by the provider; raw holds the full payload
CREATE TABLE IF NOT EXISTS activities (
    activity_id BIGINT PRIMARY KEY,
    athlete_id BIGINT NOT NULL,
    name TEXT,
    sport_type TEXT,
    start_date BIGINT,
    timezone TEXT,
    elapsed_time BIGINT,
    moving_time BIGINT,
    distance_m DOUBLE PRECISION,
    total_elevation_gain_m DOUBLE PRECISION,
    average_speed_mps DOUBLE PRECISION,
    max_speed_mps DOUBLE PRECISION,
    average_heartrate DOUBLE PRECISION,
    max_heartrate DOUBLE PRECISION,
    average_watts DOUBLE PRECISION,
    max_watts DOUBLE PRECISION,
    average_cadence DOUBLE PRECISION,
    visibility TEXT,
    trainer BOOLEAN,
    commute BOOLEAN,
    start_lat DOUBLE PRECISION,
    start_lng DOUBLE PRECISION,
    raw TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

-- Derived per-activity features, fully recomputed by the feature job
CREATE TABLE IF NOT EXISTS activity_features (
    activity_id BIGINT PRIMARY KEY,
    athlete_id BIGINT NOT NULL,
    start_date BIGINT NOT NULL,
    moving_time_s BIGINT,
    distance_m DOUBLE PRECISION,
    elevation_gain_m DOUBLE PRECISION,
    pace_s_per_km DOUBLE PRECISION,
    elev_m_per_km DOUBLE PRECISION,
    avg_hr DOUBLE PRECISION,
    max_hr DOUBLE PRECISION,
    avg_watts DOUBLE PRECISION,
    max_watts DOUBLE PRECISION,
    hr_x_time DOUBLE PRECISION,
    dist_7d_m DOUBLE PRECISION NOT NULL,
    elev_7d_m DOUBLE PRECISION NOT NULL,
    time_7d_s DOUBLE PRECISION NOT NULL,
    dist_28d_m DOUBLE PRECISION NOT NULL,
    elev_28d_m DOUBLE PRECISION NOT NULL,
    time_28d_s DOUBLE PRECISION NOT NULL,
    updated_at BIGINT NOT NULL
);

-- Saved pace predictions
CREATE TABLE IF NOT EXISTS model_predictions (
    prediction_id TEXT PRIMARY KEY,
    athlete_id BIGINT NOT NULL,
    prediction_type TEXT NOT NULL,
    model_version TEXT NOT NULL,
    distance_m DOUBLE PRECISION NOT NULL,
    elevation_gain_m DOUBLE PRECISION NOT NULL,
    predicted_pace_s_per_km DOUBLE PRECISION NOT NULL,
    predicted_time_s DOUBLE PRECISION NOT NULL,
    features TEXT NOT NULL,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activities_athlete_start ON activities(athlete_id, start_date);
CREATE INDEX IF NOT EXISTS idx_features_athlete_start ON activity_features(athlete_id, start_date);
CREATE INDEX IF NOT EXISTS idx_predictions_athlete_created ON model_predictions(athlete_id, created_at);
`
