/*package read assembles unified in-memory tables from the per-CPU files of
one simulation output. Each dataset kind (hydro cells, gravity cells,
particles, clump catalogues) has one entry point taking the output's Info and
an Options value; all of them read shards concurrently and merge the
shard-local tables in canonical CPU order, so results never depend on the
thread budget or on scheduling.

Failure policy: problems detected before dispatch (missing directories,
shard-count mismatches, unknown variable names) abort immediately. Problems
inside a single shard (broken record framing, inconsistent AMR structure)
exclude that shard and are aggregated into a PartialReadError once every
shard has been attempted; Options.AllowPartial downgrades that error to a
recorded list of skipped shards.*/
package read
