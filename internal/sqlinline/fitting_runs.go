package sqlinline

const QInsertFittingRun = `--sql e6c9a4a1-df0d-4de7-b62a-f9ba891d725b
insert into fitting_runs(id, status, pro_mode, connection_info, product_id, created_at, updated_at)
values ($1::uuid, $2::text, $3::bool, $4::text, nullif($5::text, '')::uuid, now(), now())
returning created_at, updated_at;
`

const QCompleteFittingRun = `--sql b2eac1d7-7c7c-432a-98a0-0f3ea950f47b
update fitting_runs
set status = $2::text,
    image_url = $3::text,
    video_url = $4::text,
    error_message = $5::text,
    video_error = $6::text,
    connection_info = coalesce(nullif($7::text, ''), connection_info),
    updated_at = now()
where id = $1::uuid;
`

const QGetFittingRun = `--sql e0cd0737-be69-4d23-a1c1-2fd74d2613bc
select id::text, status, pro_mode, connection_info, image_url, video_url, error_message, video_error,
       product_id::text, created_at, updated_at
from fitting_runs
where id = $1::uuid;
`

// QFailStaleFittingRuns is used by the worker to close runs whose process died
// before reaching a terminal state.
const QFailStaleFittingRuns = `--sql 931a8390-1731-42b8-9dcb-62e74e76a451
update fitting_runs
set status = 'failed', error_message = $2::text, updated_at = now()
where status = 'running' and updated_at < $1::timestamptz;
`
