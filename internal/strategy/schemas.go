package strategy

const sessionSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "enabled": {"type": "boolean"},
    "start": {"type": "string", "pattern": "^[0-9]{1,2}:[0-9]{2}$"},
    "end": {"type": "string", "pattern": "^[0-9]{1,2}:[0-9]{2}$"},
    "timezone": {"type": "string"}
  }
}`

const rsiBandSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "rsi_length": {"type": "integer", "minimum": 2},
    "upper_band": {"type": "number", "exclusiveMinimum": 0, "maximum": 100},
    "lower_band": {"type": "number", "minimum": 0, "exclusiveMaximum": 100},
    "min_candles": {"type": "integer", "minimum": 1},
    "history_size": {"type": "integer", "minimum": 10}
  }
}`

const adxRSISchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "rsi_length": {"type": "integer", "minimum": 2},
    "upper_band": {"type": "number", "exclusiveMinimum": 0, "maximum": 100},
    "lower_band": {"type": "number", "minimum": 0, "exclusiveMaximum": 100},
    "min_candles": {"type": "integer", "minimum": 1},
    "history_size": {"type": "integer", "minimum": 10},
    "short_allowed": {"type": "boolean"},
    "close_signal": {"enum": ["close", "none"]},
    "adx_period": {"type": "integer", "minimum": 2},
    "adx_max": {"type": "number", "minimum": 0},
    "session": ` + sessionSchema + `
  }
}`

const smaTrendSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "fast": {"type": "integer", "minimum": 1},
    "mid": {"type": "integer", "minimum": 2},
    "slow": {"type": "integer", "minimum": 3},
    "trend_len": {"type": "integer", "minimum": 1},
    "min_candles": {"type": "integer", "minimum": 1},
    "history_size": {"type": "integer", "minimum": 10},
    "short_allowed": {"type": "boolean"},
    "channel_entry": {"type": "boolean"},
    "close_signal": {"enum": ["close", "none"]},
    "session": ` + sessionSchema + `
  }
}`

const trendEMASchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "sma_length": {"type": "integer", "minimum": 1},
    "ema_length": {"type": "integer", "minimum": 1},
    "history_size": {"type": "integer", "minimum": 10},
    "day_timezone": {"type": "string"},
    "session": ` + sessionSchema + `
  }
}`

const pinbarSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "sma_size": {"type": "integer", "minimum": 1},
    "trend_len": {"type": "integer", "minimum": 1},
    "pinbar_size": {"type": ["number", "string"]},
    "super_pinbar_size": {"type": ["number", "string"]},
    "max_tail": {"type": ["number", "string"]},
    "min_body": {"type": ["number", "string"]},
    "min_candles": {"type": "integer", "minimum": 4},
    "history_size": {"type": "integer", "minimum": 10}
  }
}`
