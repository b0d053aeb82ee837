package sqlinline

const QInsertReview = `--sql 3926b1d4-967b-4bc0-a57d-b70461c1881d
insert into reviews(id, product_id, author, rating, content, created_at)
values (gen_random_uuid(), $1::uuid, $2::text, $3::smallint, $4::text, now())
returning id::text, created_at;
`

const QListReviews = `--sql 723a0cf9-cccd-4566-b6c1-d12f124d8357
select id::text, product_id::text, author, rating, content, created_at, count(*) over() as total
from reviews
where product_id = $1::uuid
order by created_at desc, id
limit $2::int offset $3::int;
`

const QReviewSummary = `--sql ca1eac68-3208-40e1-8997-3be2e37d126f
select count(*)::int, coalesce(avg(rating), 0)::float8
from reviews
where product_id = $1::uuid;
`
