package ratelimit

import "github.com/go-redis/redis/v8"

// tokenBucketLua implements an atomic token bucket. State lives in a hash
// (tokens, last_refill_ms); the clock comes in as an argument so every
// replica observes the same refill arithmetic regardless of server time.
//
// KEYS[1]  bucket key
// ARGV[1]  capacity
// ARGV[2]  refill per second
// ARGV[3]  tokens to consume
// ARGV[4]  caller clock, unix milliseconds
//
// Returns {allowed, remaining, wait_ms}. When allowed, wait_ms is the time
// until a full token is available again; when denied, it is the time until
// the deficit refills, padded so an immediate retry does not race the clock.
// A denied request consumes nothing.
const tokenBucketLua = `
local capacity = tonumber(ARGV[1])
local refill_per_sec = tonumber(ARGV[2])
local requested = tonumber(ARGV[3])
local now_ms = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill_ms = tonumber(state[2])

if tokens == nil or last_refill_ms == nil then
  tokens = capacity
  last_refill_ms = now_ms
end

local elapsed_ms = now_ms - last_refill_ms
if elapsed_ms < 0 then
  elapsed_ms = 0
end
tokens = math.min(capacity, tokens + (elapsed_ms / 1000) * refill_per_sec)

local allowed = 0
local wait_ms = 0
if tokens >= requested then
  allowed = 1
  tokens = tokens - requested
  if tokens < 1 then
    wait_ms = math.ceil(((1 - tokens) / refill_per_sec) * 1000)
  end
else
  wait_ms = math.ceil(((requested - tokens) / refill_per_sec) * 1000) + 100
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'last_refill_ms', now_ms)
redis.call('PEXPIRE', KEYS[1], math.max(60000, math.ceil((capacity / refill_per_sec) * 2000)))

return {allowed, math.floor(tokens), wait_ms}
`

var tokenBucketScript = redis.NewScript(tokenBucketLua)
