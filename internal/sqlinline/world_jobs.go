package sqlinline

const QEnsureWorldJobs = `--sql c4b1f0a2-8e3d-4a57-b6f9-2d1e0c9a7b54
create table if not exists world_jobs (
    id uuid primary key,
    operation_id text not null,
    name text not null,
    model text not null,
    status text not null,
    error text,
    world_id text,
    world jsonb,
    submitted_at timestamptz not null,
    finished_at timestamptz not null,
    recorded_at timestamptz not null default now()
);
`

const QInsertWorldJob = `--sql 91e7d3c8-4f2a-4b6e-a0d5-7c3b8e1f6a29
insert into world_jobs (id, operation_id, name, model, status, error, world_id, world, submitted_at, finished_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::text, nullif($6::text, ''), nullif($7::text, ''), $8::jsonb, $9::timestamptz, $10::timestamptz)
on conflict (id) do nothing;
`

const QListWorldJobs = `--sql 5ad2e6f1-0b7c-4e93-8f14-6c2a9d3e7b05
select id, operation_id, name, model, status, coalesce(error, ''), coalesce(world_id, ''), submitted_at, finished_at
from world_jobs
order by finished_at desc
limit $1::int;
`
