package envcfg

import "time"

// Variables consumed across the execution engine.
var (
	StorageBasePath = RegisterStringVar(
		"CODESESSION_STORAGE_BASE_PATH",
		"./data",
		"Base directory for the file storage backend.",
		ComponentStorage,
	)

	StorageKVURL = RegisterStringVar(
		"CODESESSION_STORAGE_KV_URL",
		"",
		"NATS connection URL for the KV storage backend. Empty disables it.",
		ComponentStorage,
	)

	StorageKVPrefix = RegisterStringVar(
		"CODESESSION_STORAGE_KV_PREFIX",
		"codesession",
		"Key prefix for the KV storage backend.",
		ComponentStorage,
	)

	ToolsPath = RegisterStringVar(
		"CODESESSION_TOOLS_PATH",
		"./tools",
		"Directory of CLI tool YAML definitions.",
		ComponentExecutor,
	)

	ServerAuthToken = RegisterStringVar(
		"CODESESSION_AUTH_TOKEN",
		"",
		"Bearer token required on every container session server request.",
		ComponentServer,
	)

	ServerAuthDisabled = RegisterBoolVar(
		"CODESESSION_AUTH_DISABLED",
		false,
		"Explicitly disable auth. The server refuses to start if auth is neither configured nor disabled.",
		ComponentServer,
	)

	ServerAddr = RegisterStringVar(
		"CODESESSION_SERVER_ADDR",
		":8080",
		"Listen address for the container session server.",
		ComponentServer,
	)

	DepsRuntimeMutationAllowed = RegisterBoolVar(
		"CODESESSION_DEPS_RUNTIME_MUTATION_ALLOWED",
		true,
		"Whether deps.add/deps.remove are permitted at runtime.",
		ComponentDeps,
	)

	ExecutorStartupTimeout = RegisterDurationVar(
		"CODESESSION_EXECUTOR_STARTUP_TIMEOUT",
		30*time.Second,
		"Registered startup timeout; the subprocess and container executors do not read it and wait a fixed 30s for readiness.",
		ComponentExecutor,
	)
)
