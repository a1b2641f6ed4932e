// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent, Analysis}: full config tree parsed from YAML
//   - AgentConfig: server_endpoint, poll_interval, buffer_size, server_auth,
//     sessions []
//   - Session: id, exercise, source, zones []
//   - Source: type (jsonl|http), path, endpoint, auth, tls
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env, username, password_env; Key(), Token() and
//     Password() resolve secrets from environment variables
//   - AnalysisConfig: thresholds, joints, landmark sets, extremities,
//     symmetry pair and exercise profiles, all by name
//
// Load(path) reads the YAML file, applies defaults (100ms poll, 1000 buffer,
// the engine's stock analysis tables), derives ids for unnamed sessions, then
// validates. Unknown landmark, joint, source type and zone shape names are
// rejected with a "did you mean" hint.
//
// AnalysisConfig.Build() turns the YAML tables into a pose.Config.
//
// Watch(ctx, path, onChange) uses fsnotify on the file's directory and calls
// onChange with each newly parsed Config.
package config
