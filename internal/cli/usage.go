package cli

const usage = `Usage:
  hugo <database> <subcommand> [options] [args...]
  hugo --version

Subcommands:
  has   (h)           <key>              succeed if the key is found
  get   (g)           <key> [default]    print the value, or default when missing
  set   (s)           <key> [value]      set the value; no value stores null
  inc   (i)           <key> [delta]      add delta (default 1) and print the result
  dec   (d)           <key> [delta]      subtract delta (default 1) and print the result
  swap                <key> [value]      set the value and print the previous one
  check (c)           <key> [value]      set the value; succeed if the key existed
  unset (remove, rm)  <key>              remove the key
  ttl                 <key> [ttl]        print the expiry, or set it when ttl is given
  import              <file.sqlite>      copy every record from another store
  shell               [command...]       open the database shell
  gc                                     delete expired records and compact

Options:
  -t, --ttl <ttl>     expiry for has, get, set, inc, dec, swap, check
  -r, --refresh       re-arm the expiry of a found key; needs --ttl
  -h, --help          show this help

TTL:
  2030-01-02 03:04:05, 2030/01/02 03:04:05, 2030-01-02, 2030/01/02 (local time)
  or a duration: 12years 15days 2min 2s, 1h30m, 500ms

Exit status: 0 success or found, 1 false or not found, 2 error.
Put "--" before values starting with "-".

Environment:
  HUGO_DRIVER           sqlite (default) or postgres
  HUGO_DATA_DIR         directory of sqlite store files
  HUGO_POSTGRES_DSN     connection string when HUGO_DRIVER=postgres
  HUGO_TIMEZONE         zone for absolute TTLs and printed expiries
  HUGO_LOG_LEVEL        debug, info, warn (default), error
  HUGO_PUSHGATEWAY_URL  push operation metrics after each run
`
