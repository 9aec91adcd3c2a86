package ir

// EngineVersion is the recs engine version, reported by recs --version.
const EngineVersion = "0.1.0"
