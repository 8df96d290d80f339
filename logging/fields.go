// Package logging provides centralized logging utilities for the drops miner.
// It defines standardized field names and helper functions to ensure consistent
// structured logging across all mining components.
package logging

// Standard field name constants for structured logging.
// Using constants ensures consistency and prevents typos across the codebase.
const (
	// Component identification
	FieldComponent = "component"

	// Campaign fields
	FieldCampaign   = "campaign"
	FieldCampaignID = "campaign_id"
	FieldGame       = "game"
	FieldGameID     = "game_id"

	// Drop fields
	FieldDrop   = "drop"
	FieldDropID = "drop_id"

	// Channel fields
	FieldChannel     = "channel"
	FieldChannelID   = "channel_id"
	FieldBroadcastID = "broadcast_id"
	FieldViewers     = "viewers"

	// Session fields
	FieldSessionSeq = "session_seq"
	FieldUserID     = "user_id"

	// Progress fields
	FieldMinutes         = "minutes"
	FieldRequiredMinutes = "required_minutes"
	FieldPercent         = "percent"

	// Operation fields
	FieldOperation = "operation"
	FieldReason    = "reason"
	FieldSource    = "source"
	FieldAttempt   = "attempt"

	// Network/connection fields
	FieldAddr     = "addr"
	FieldURL      = "url"
	FieldStatus   = "status"
	FieldDuration = "duration"
)

// Component name constants used with FieldComponent.
const (
	ComponentCatalog       = "campaign_catalog"
	ComponentDiscovery     = "channel_discovery"
	ComponentScorer        = "channel_scorer"
	ComponentHeartbeat     = "heartbeat"
	ComponentFailover      = "failover"
	ComponentReconciler    = "progress_reconciler"
	ComponentController    = "session_controller"
	ComponentClaimer       = "auto_claimer"
	ComponentClient        = "catalog_client"
	ComponentRealtime      = "realtime_subscriber"
	ComponentEvents        = "event_bus"
	ComponentSettings      = "settings_provider"
	ComponentAuth          = "token_provider"
	ComponentObservability = "observability"
)

// Progress source values used with FieldSource.
const (
	SourcePush = "push"
	SourcePoll = "poll"
)
