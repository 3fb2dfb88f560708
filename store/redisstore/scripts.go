package redisstore

import "github.com/redis/go-redis/v9"

const (
	scriptMissing   int64 = -1
	scriptStale     int64 = -2
	scriptDuplicate int64 = -3
)

// Every key a script reads or writes is passed in KEYS.

// KEYS[1] account, KEYS[2] email index, KEYS[3..] token indexes to claim.
// ARGV[1] id, ARGV[2..] field/value pairs.
const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return -3
end
if redis.call("SETNX", KEYS[2], ARGV[1]) == 0 then
  return -3
end
for i = 3, #KEYS do
  redis.call("SET", KEYS[i], ARGV[1])
end

local fields = {}
for i = 2, #ARGV do
  fields[#fields + 1] = ARGV[i]
end
redis.call("HSET", KEYS[1], unpack(fields))
return 1
`

var createLua = redis.NewScript(createScript)

// KEYS[1] account, KEYS[2] new email index, KEYS[3] old email index,
// KEYS[4..5] old/new verification index, KEYS[6..7] old/new reset index.
// ARGV[1] expected version, ARGV[2] old email,
// ARGV[3..4] old/new verification digest, ARGV[5..6] old/new reset digest,
// ARGV[7..] field/value pairs.
//
// The old email and digests are what the caller read before the call. If
// the record moved on since, the write is reported stale.
const saveScript = `
local cur = redis.call("HMGET", KEYS[1], "version", "email", "id", "verification_hash", "reset_hash")
if not cur[1] then
  return -1
end
if cur[1] ~= ARGV[1] or cur[2] ~= ARGV[2] or (cur[4] or "") ~= ARGV[3] or (cur[5] or "") ~= ARGV[5] then
  return -2
end

local id = cur[3]
if KEYS[2] ~= KEYS[3] then
  if redis.call("SETNX", KEYS[2], id) == 0 then
    return -3
  end
  redis.call("DEL", KEYS[3])
end

local function reindex(old_key, old_hash, new_key, new_hash)
  if old_hash == new_hash then
    return
  end
  if old_hash ~= "" then
    redis.call("DEL", old_key)
  end
  if new_hash ~= "" then
    redis.call("SET", new_key, id)
  end
end
reindex(KEYS[4], ARGV[3], KEYS[5], ARGV[4])
reindex(KEYS[6], ARGV[5], KEYS[7], ARGV[6])

local fields = {}
for i = 7, #ARGV do
  fields[#fields + 1] = ARGV[i]
end
redis.call("HSET", KEYS[1], unpack(fields))
return redis.call("HINCRBY", KEYS[1], "version", 1)
`

var saveLua = redis.NewScript(saveScript)

// KEYS[1] token index, KEYS[2] account the index pointed at.
// ARGV[1] account id, ARGV[2] hash field, ARGV[3] expiry field,
// ARGV[4] token digest, ARGV[5] now (us).
//
// Expiry is judged against ARGV[5], the caller's clock. Index keys carry no
// TTL; each account holds at most one per kind and Save removes it.
const findByTokenScript = `
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return false
end
local vals = redis.call("HMGET", KEYS[2], ARGV[2], ARGV[3])
if vals[1] ~= ARGV[4] then
  return false
end
if tonumber(vals[2] or "0") <= tonumber(ARGV[5]) then
  return false
end
return redis.call("HGETALL", KEYS[2])
`

var findByTokenLua = redis.NewScript(findByTokenScript)

// KEYS[1] account.
// ARGV[1..2] expected attempts and lock_until, ARGV[3..4] replacements.
const swapLockoutScript = `
local cur = redis.call("HMGET", KEYS[1], "failed_attempts", "lock_until")
if not cur[1] then
  return -1
end
if cur[1] ~= ARGV[1] or cur[2] ~= ARGV[2] then
  return 0
end
redis.call("HSET", KEYS[1], "failed_attempts", ARGV[3], "lock_until", ARGV[4])
return 1
`

var swapLockoutLua = redis.NewScript(swapLockoutScript)

// KEYS[1] account. ARGV[1] last login (us).
const loginSuccessScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
redis.call("HSET", KEYS[1], "failed_attempts", "0", "lock_until", "0", "last_login_at", ARGV[1])
return 1
`

var loginSuccessLua = redis.NewScript(loginSuccessScript)
