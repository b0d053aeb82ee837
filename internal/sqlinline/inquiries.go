package sqlinline

const QInsertInquiry = `--sql 1998c4b2-3bac-4977-90fe-b2b07f26d0ff
insert into brand_inquiries(id, company, contact_name, email, phone, message, country, status, created_at)
values (gen_random_uuid(), $1::text, $2::text, $3::text, $4::text, $5::text, $6::text, 'new', now())
returning id::text, status, created_at;
`

const QListInquiries = `--sql 88ca0fed-f241-490a-b53a-eebe0e55dd15
select id::text, company, contact_name, email, phone, message, country, status, created_at, count(*) over() as total
from brand_inquiries
where ($1::text = '' or status = $1::text)
order by created_at desc, id
limit $2::int offset $3::int;
`
